package detectionService

import (
	"VisionGuard/internal/api/detection"
	detectionRepository "VisionGuard/internal/api/detection/repository"
	"VisionGuard/internal/entity"
	"VisionGuard/pkg/inference"
	"VisionGuard/pkg/redis"
	"VisionGuard/pkg/s3"
	"VisionGuard/pkg/storage"
	"VisionGuard/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IDetectionService interface {
	Run(ctx context.Context, req detection.DetectionRequest) (*detection.SessionView, error)
	Detect(ctx context.Context, req detection.DetectionRequest) (*entity.DetectionResult, error)
	Summarize(result *entity.DetectionResult, showChart bool) (*detection.DetectionSummary, error)
	LatestOutput() ([]byte, error)
	History(ctx context.Context, limit int) ([]entity.HistoryEntry, error)
	ModelName() string
}

type detectionService struct {
	log      *logrus.Logger
	detector inference.Detector
	model    *inference.Model
	results  *storage.ResultStore
	repo     detectionRepository.Repository
	cache    redis.IRedis
	archive  s3.ItfS3
	utils    utils.IUtils
}

// NewDetectionService wires one session pipeline. repo, cache and archive
// are optional and may be nil.
func NewDetectionService(
	log *logrus.Logger,
	detector inference.Detector,
	model *inference.Model,
	results *storage.ResultStore,
	repo detectionRepository.Repository,
	cache redis.IRedis,
	archive s3.ItfS3,
	utils utils.IUtils,
) IDetectionService {
	return &detectionService{
		log:      log,
		detector: detector,
		model:    model,
		results:  results,
		repo:     repo,
		cache:    cache,
		archive:  archive,
		utils:    utils,
	}
}

func (s *detectionService) ModelName() string {
	return s.model.Name
}
