package stream

import (
	"log/slog"

	"google.golang.org/grpc"

	"autoguard/internal/model"
)

const (
	EventServiceName = "autoguard.events.v1.EventService"
	SubscribeMethod  = "/" + EventServiceName + "/Subscribe"
)

type SubscribeRequest struct {
	Events []model.EventName `json:"events,omitempty"`
}

type eventServer interface {
	Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error
}

var eventServiceDesc = grpc.ServiceDesc{
	ServiceName: EventServiceName,
	HandlerType: (*eventServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(eventServer).Subscribe(req, stream)
}

// EventService streams bus events to gRPC subscribers.
type EventService struct {
	bus    *Bus
	logger *slog.Logger
	buffer int
}

func NewEventService(bus *Bus, buffer int, logger *slog.Logger) *EventService {
	return &EventService{bus: bus, logger: logger, buffer: buffer}
}

func (s *EventService) Register(reg grpc.ServiceRegistrar) {
	reg.RegisterService(&eventServiceDesc, s)
}

func (s *EventService) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	filter := newEventFilter(req.Events)
	sub := s.bus.Subscribe(s.buffer)
	defer sub.Close()

	s.logger.Info("grpc subscriber attached", "events", req.Events, "subscribers", s.bus.Subscribers())
	defer s.logger.Info("grpc subscriber detached")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !filter.match(env.Event) {
				continue
			}
			if err := stream.SendMsg(&env); err != nil {
				return err
			}
		}
	}
}
