// Package natsbus carries odometry and velocity commands over NATS subjects, in the JSON shape of
// the corresponding ROS messages.
package natsbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/rcognita/turtlenav/localization"
	"github.com/rcognita/turtlenav/logging"
)

// ErrNotConnected is returned when the connection is closed or reconnecting.
var ErrNotConnected = errors.New("not connected to NATS")

// Connect dials url, logging disconnects and reconnects. It retries forever once connected.
func Connect(url, name string, logger logging.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.PingInterval(30*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("reconnected to NATS", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to NATS at %s", url)
	}
	return conn, nil
}

// OdometrySource subscribes to an odometry subject. NATS delivers a subscription's messages one at
// a time in arrival order, so the handler sees samples in publication order.
type OdometrySource struct {
	conn    *nats.Conn
	subject string
	logger  logging.Logger

	mu  sync.Mutex
	sub *nats.Subscription

	badMessage rate.Sometimes
}

// NewOdometrySource returns a source reading subject on conn.
func NewOdometrySource(conn *nats.Conn, subject string, logger logging.Logger) *OdometrySource {
	return &OdometrySource{
		conn:       conn,
		subject:    subject,
		logger:     logger,
		badMessage: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Start subscribes. Messages that do not parse are logged and dropped.
func (src *OdometrySource) Start(ctx context.Context, handler localization.Handler) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.sub != nil {
		return errors.Errorf("already subscribed to %s", src.subject)
	}
	if !src.conn.IsConnected() {
		return ErrNotConnected
	}
	sub, err := src.conn.Subscribe(src.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		sample, err := DecodeOdometry(msg.Data)
		if err != nil {
			src.badMessage.Do(func() {
				src.logger.Warnw("dropping odometry message", "subject", msg.Subject, "error", err)
			})
			return
		}
		handler(sample)
	})
	if err != nil {
		return errors.Wrapf(err, "cannot subscribe to %s", src.subject)
	}
	src.sub = sub
	src.logger.Infow("subscribed to odometry", "subject", src.subject)
	return nil
}

// Close unsubscribes. The connection stays open.
func (src *OdometrySource) Close(ctx context.Context) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.sub == nil {
		return nil
	}
	err := src.sub.Unsubscribe()
	src.sub = nil
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// Publisher is a drive that publishes Twist messages.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher returns a drive publishing on subject.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// SetVelocity publishes the command.
func (p *Publisher) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	return p.publish(NewTwist(linear, angular))
}

// Stop publishes a zero twist and flushes so it leaves before the caller shuts down.
func (p *Publisher) Stop(ctx context.Context, extra map[string]interface{}) error {
	if err := p.publish(Twist{}); err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *Publisher) publish(twist Twist) error {
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(twist)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}
