package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/ems/core/dispatch"
	"github.com/kilianp07/ems/infra/logger"
)

// PlanPublisher publishes finished dispatch plans to an MQTT broker. The
// summary goes to <topic>/summary and the schedule to <topic>/schedule.
type PlanPublisher struct {
	cli        pahoClient
	topic      string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

type summaryMessage struct {
	RunID   string           `json:"run_id"`
	Status  string           `json:"status"`
	Backend string           `json:"backend"`
	Start   time.Time        `json:"start"`
	Summary dispatch.Summary `json:"summary"`
}

type scheduleMessage struct {
	RunID             string          `json:"run_id"`
	Start             time.Time       `json:"start"`
	ResolutionMinutes int             `json:"resolution_minutes"`
	Steps             []dispatch.Step `json:"steps"`
}

// NewPlanPublisher connects to the broker described by cfg.
func NewPlanPublisher(cfg Config) (*PlanPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &PlanPublisher{
		topic:      cfg.Topic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if cfg.LWTTopic != "" {
			c.Publish(cfg.LWTTopic, cfg.LWTQoS, cfg.LWTRetain, "online")
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// Publish sends the summary and the schedule of res.
func (p *PlanPublisher) Publish(res *dispatch.Result) error {
	summary, err := json.Marshal(summaryMessage{
		RunID:   res.RunID,
		Status:  res.Status,
		Backend: res.Backend,
		Start:   res.Start,
		Summary: res.Summary,
	})
	if err != nil {
		return err
	}
	schedule, err := json.Marshal(scheduleMessage{
		RunID:             res.RunID,
		Start:             res.Start,
		ResolutionMinutes: res.Params.ResolutionMinutes,
		Steps:             res.Steps,
	})
	if err != nil {
		return err
	}
	if err := p.send(p.topic+"/summary", summary); err != nil {
		return err
	}
	return p.send(p.topic+"/schedule", schedule)
}

func (p *PlanPublisher) send(topic string, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Run publishes every result received on sub until ctx is done or sub is closed.
func (p *PlanPublisher) Run(ctx context.Context, sub <-chan *dispatch.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-sub:
			if !ok {
				return
			}
			if err := p.Publish(res); err != nil {
				p.log.Errorf("run %s: %v", res.RunID, err)
			}
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PlanPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
