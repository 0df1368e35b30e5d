package inference

import (
	"VisionGuard/internal/entity"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type websocketDetector struct {
	url          string
	model        string
	conn         *websocket.Conn
	mu           sync.Mutex
	log          *logrus.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

// NewWebsocketDetector returns a detector that talks to the backend over
// one websocket. The connection is dialled lazily and re-dialled after a
// failed exchange.
func NewWebsocketDetector(url string, model string, timeout time.Duration, log *logrus.Logger) Detector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &websocketDetector{
		url:          url,
		model:        model,
		log:          log,
		pingInterval: 30 * time.Second,
		readTimeout:  timeout,
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
}

func (c *websocketDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]entity.Detection, error) {
	payload, err := json.Marshal(newDetectRequest(c.model, image, threshold))
	if err != nil {
		return nil, fmt.Errorf("error marshaling detection request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return nil, fmt.Errorf("cannot connect to inference service: %w", err)
		}
	}
	conn := c.conn

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))

	c.log.WithFields(logrus.Fields{
		"bytes":     len(image),
		"threshold": threshold,
	}).Debug("Sending frame to inference service")

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.drop()
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("error reading detection message: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	detections, err := decodeResponse(message)
	if err != nil {
		return nil, err
	}

	c.log.WithField("count", len(detections)).Debug("Received response from inference service")

	return detections, nil
}

func (c *websocketDetector) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// dial must be called with c.mu held.
func (c *websocketDetector) dial(ctx context.Context) error {
	select {
	case <-c.done:
		return errors.New("detector is closed")
	default:
	}

	c.log.Infof("Connecting to inference service at %s", c.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

// drop must be called with c.mu held.
func (c *websocketDetector) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *websocketDetector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping failed for inference service, marking connection as dead: %v", err)
			c.drop()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *websocketDetector) deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(t) {
		return ctxDeadline
	}
	return t
}
