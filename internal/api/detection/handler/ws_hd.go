package detectionHandler

import (
	"VisionGuard/internal/api/detection"
	"VisionGuard/internal/middleware"
	contextPkg "VisionGuard/pkg/context"
	"VisionGuard/pkg/handlerUtil"
	"VisionGuard/pkg/log"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

const liveReadTimeout = 60 * time.Second

type liveError struct {
	Error string `json:"error"`
}

type liveThreshold struct {
	Confidence float64 `json:"confidence"`
}

// handleLiveDetection treats every binary frame as an image and answers
// with a detection response. A text frame {"confidence":x} changes the
// threshold for the rest of the connection.
func (h *DetectionHandler) handleLiveDetection(c *websocket.Conn) {
	connID, _ := c.Locals(middleware.RequestIDKey).(string)
	if connID == "" {
		connID = "ws"
	}

	h.log.WithField("request_id", connID).Info("Live detection client connected")
	defer h.log.WithField("request_id", connID).Info("Live detection client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	errHandler := handlerUtil.New(h.log)
	threshold := detection.DefaultConfidence

	for frame := 1; ; {
		if err := c.SetReadDeadline(time.Now().Add(liveReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithField("request_id", connID).Errorf("Live detection websocket error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var msg detection.ThresholdMessage
			if err := jsoniter.Unmarshal(message, &msg); err != nil {
				if !h.writeLive(c, liveError{Error: "invalid control message"}) {
					return
				}
				continue
			}
			if err := h.validator.Struct(msg); err != nil {
				if !h.writeLive(c, liveError{Error: detection.ErrInvalidThreshold.Error()}) {
					return
				}
				continue
			}
			threshold = msg.Confidence
			if !h.writeLive(c, liveThreshold{Confidence: threshold}) {
				return
			}

		case websocket.BinaryMessage:
			requestID := fmt.Sprintf("%s-%d", connID, frame)
			frame++

			resp, err := h.detectFrame(requestID, message, threshold)
			if err != nil {
				_, msg := errHandler.Resolve(requestID, err, "/api/v1/detections/ws", "live_detection")
				if !h.writeLive(c, liveError{Error: msg}) {
					return
				}
				continue
			}
			if !h.writeLive(c, resp) {
				return
			}

		default:
			h.log.Warnf("Received unexpected message type: %d", messageType)
		}
	}
}

func (h *DetectionHandler) detectFrame(requestID string, image []byte, threshold float64) (detection.DetectionResponse, error) {
	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), requestTimeout)
	defer cancel()

	log.WithRequestID(ctx).WithFields(log.Fields{
		"bytes":     len(image),
		"threshold": threshold,
	}).Debug("Live frame received")

	contentType, err := h.utils.SniffImageType(image)
	if err != nil {
		return detection.DetectionResponse{}, err
	}

	view, err := h.detectionService.Run(ctx, detection.DetectionRequest{
		Image:               image,
		ContentType:         contentType,
		ConfidenceThreshold: threshold,
	})
	if err != nil {
		return detection.DetectionResponse{}, err
	}

	return toResponse(view), nil
}

func (h *DetectionHandler) writeLive(c *websocket.Conn, v interface{}) bool {
	if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return false
	}
	if err := c.WriteJSON(v); err != nil {
		h.log.Errorf("Error writing JSON response: %v", err)
		return false
	}
	return true
}
