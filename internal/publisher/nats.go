package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"ptv-collector/internal/ptv"
)

// NATSPublisher pushes freshly stored positions onto NATS subjects so live
// consumers do not have to poll the database.
type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("ptv-collector"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	VehicleID   string   `json:"vehicleId"`
	RouteID     string   `json:"routeId"`
	RunID       string   `json:"runId"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Timestamp   string   `json:"timestamp"`
	DirectionID *int     `json:"directionId,omitempty"`
	Heading     *float64 `json:"heading,omitempty"`
	RouteType   int      `json:"routeType"`
}

// PublishPosition publishes one position on vehicles.<mode>.<route>.<vehicle>.
func (p *NATSPublisher) PublishPosition(v ptv.VehiclePosition) error {
	subject := fmt.Sprintf("vehicles.%s.%s.%s",
		subjectToken(ptv.RouteTypeName(v.RouteType)),
		subjectToken(v.RouteID),
		subjectToken(v.VehicleID))
	msg := PositionMessage{
		VehicleID:   v.VehicleID,
		RouteID:     v.RouteID,
		RunID:       v.RunID,
		Lat:         v.Latitude,
		Lng:         v.Longitude,
		Timestamp:   v.Timestamp,
		DirectionID: v.DirectionID,
		Heading:     v.Heading,
		RouteType:   v.RouteType,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
