package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"devlend/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AvailabilityServiceName  = "devlend.availability.v1.AvailabilityService"
	CheckAvailabilityMethod  = "/" + AvailabilityServiceName + "/CheckAvailability"
	ListResourcesMethod      = "/" + AvailabilityServiceName + "/ListResources"
	permReadAvailability     = "read:availability"
	permReadResources        = "read:resources"
	availabilityProtoPackage = "devlend/availability/v1/availability.proto"
)

// AvailabilityServer is the read-only API for kiosks and partner systems.
// Messages are google.protobuf.Struct so no generated stubs are needed.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListResources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: AvailabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler(CheckAvailabilityMethod, AvailabilityServer.CheckAvailability)},
		{MethodName: "ListResources", Handler: unaryHandler(ListResourcesMethod, AvailabilityServer.ListResources)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: availabilityProtoPackage,
}

// RegisterAvailabilityServer registers srv on s.
func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityService answers availability questions over gRPC.
type AvailabilityService struct {
	bookings  domain.BookingService
	resources domain.ResourceService
}

func NewAvailabilityService(bookings domain.BookingService, resources domain.ResourceService) *AvailabilityService {
	return &AvailabilityService{
		bookings:  bookings,
		resources: resources,
	}
}

// CheckAvailability takes {start_at, end_at, resource_id?} with RFC 3339
// times and returns {available, reason, cause}.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	startRaw := strings.TrimSpace(fields["start_at"].GetStringValue())
	endRaw := strings.TrimSpace(fields["end_at"].GetStringValue())
	if startRaw == "" || endRaw == "" {
		return nil, status.Error(codes.InvalidArgument, "start_at and end_at are required")
	}

	start, err1 := time.Parse(time.RFC3339, startRaw)
	end, err2 := time.Parse(time.RFC3339, endRaw)
	if err1 != nil || err2 != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid date format; expected RFC 3339")
	}

	var resourceID *int64
	if v, ok := fields["resource_id"]; ok {
		n := v.GetNumberValue()
		if n <= 0 || n != float64(int64(n)) {
			return nil, status.Error(codes.InvalidArgument, "resource_id must be a positive integer")
		}
		id := int64(n)
		resourceID = &id
	}

	result, err := s.bookings.CheckAvailability(ctx, start, end, resourceID)
	if err != nil {
		return nil, grpcError(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"available": result.Available,
		"reason":    result.Reason,
		"cause":     string(result.Cause),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// ListResources returns the catalogue with each device's status.
func (s *AvailabilityService) ListResources(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.resources.ListCatalogue(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	items := make([]any, 0, len(list))
	for _, r := range list {
		item := map[string]any{
			"id":     r.ID,
			"label":  r.Label,
			"status": string(r.Status),
		}
		if r.DailyRate != nil {
			item["price_per_day"] = *r.DailyRate
		}
		items = append(items, item)
	}

	out, err := structpb.NewStruct(map[string]any{"resources": items})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func grpcError(err error) error {
	msg := domain.Message(err, "internal error")
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNoResourceAvailable):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, msg)
	case errors.Is(err, domain.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, msg)
	}
	return status.Error(codes.Internal, msg)
}
