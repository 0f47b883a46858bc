package api

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"devlend/internal/config"
	"devlend/internal/domain"
	"devlend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func grpcTestConfig() config.APIConfig {
	return config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "kiosk", Extra: "lobby", Name: "lobby kiosk", Permissions: []string{permReadAvailability}},
				{Key: "partner", Extra: "club", Name: "game club"},
			},
		},
	}
}

func startGRPC(t *testing.T, cfg config.APIConfig, svc AvailabilityServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, err := newGRPCServer(cfg, svc, lis, nil)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func withKey(ctx context.Context, key, extra string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "x-api-key", key, "x-api-extra", extra)
}

func availabilityRequest(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return in
}

func TestGRPCAvailability(t *testing.T) {
	bookings := new(mockBookings)
	resources := new(mockResources)
	conn := startGRPC(t, grpcTestConfig(), NewAvailabilityService(bookings, resources))

	window := map[string]any{
		"start_at":    "2030-03-02T10:00:00Z",
		"end_at":      "2030-03-02T18:00:00Z",
		"resource_id": 2,
	}

	t.Run("no key", func(t *testing.T) {
		out := new(structpb.Struct)
		err := conn.Invoke(context.Background(), CheckAvailabilityMethod, availabilityRequest(t, window), out)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("wrong extra", func(t *testing.T) {
		out := new(structpb.Struct)
		err := conn.Invoke(withKey(context.Background(), "kiosk", "hall"), CheckAvailabilityMethod, availabilityRequest(t, window), out)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("kiosk checks a window", func(t *testing.T) {
		bookings.On("CheckAvailability", mock.Anything,
			mock.MatchedBy(func(s time.Time) bool { return s.Equal(time.Date(2030, 3, 2, 10, 0, 0, 0, time.UTC)) }),
			mock.Anything,
			mock.MatchedBy(func(id *int64) bool { return id != nil && *id == 2 })).
			Return(&models.Availability{Available: false, Reason: "Console is already booked for that period.", Cause: models.CauseBusy}, nil).Once()

		var header metadata.MD
		out := new(structpb.Struct)
		ctx := metadata.AppendToOutgoingContext(withKey(context.Background(), "kiosk", "lobby"), requestIDMetadataKey, "kiosk-7")
		err := conn.Invoke(ctx, CheckAvailabilityMethod, availabilityRequest(t, window), out, grpc.Header(&header))
		require.NoError(t, err)

		assert.False(t, out.GetFields()["available"].GetBoolValue())
		assert.Equal(t, "busy", out.GetFields()["cause"].GetStringValue())
		assert.Equal(t, []string{"kiosk-7"}, header.Get(requestIDMetadataKey))
	})

	t.Run("kiosk lacks resources permission", func(t *testing.T) {
		out := new(structpb.Struct)
		err := conn.Invoke(withKey(context.Background(), "kiosk", "lobby"), ListResourcesMethod, &structpb.Struct{}, out)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("unrestricted key lists resources", func(t *testing.T) {
		rate := int64(5000)
		resources.On("ListCatalogue", mock.Anything).Return([]models.Resource{
			{ID: 1, Label: "PS5 #1", Status: models.ResourceAvailable, DailyRate: &rate},
			{ID: 2, Label: "Switch #1", Status: models.ResourceMaintenance},
		}, nil).Once()

		out := new(structpb.Struct)
		err := conn.Invoke(withKey(context.Background(), "partner", "club"), ListResourcesMethod, &structpb.Struct{}, out)
		require.NoError(t, err)

		list := out.GetFields()["resources"].GetListValue().GetValues()
		require.Len(t, list, 2)
		first := list[0].GetStructValue().GetFields()
		assert.Equal(t, "PS5 #1", first["label"].GetStringValue())
		assert.Equal(t, float64(5000), first["price_per_day"].GetNumberValue())
		_, hasRate := list[1].GetStructValue().GetFields()["price_per_day"]
		assert.False(t, hasRate)
	})

	t.Run("missing window", func(t *testing.T) {
		out := new(structpb.Struct)
		err := conn.Invoke(withKey(context.Background(), "kiosk", "lobby"), CheckAvailabilityMethod,
			availabilityRequest(t, map[string]any{"start_at": "2030-03-02T10:00:00Z"}), out)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("health needs no key", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
			&healthpb.HealthCheckRequest{Service: AvailabilityServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	bookings.AssertExpectations(t)
	resources.AssertExpectations(t)
}

func TestGRPCRateLimit(t *testing.T) {
	cfg := grpcTestConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}

	resources := new(mockResources)
	resources.On("ListCatalogue", mock.Anything).Return([]models.Resource{}, nil)
	conn := startGRPC(t, cfg, NewAvailabilityService(new(mockBookings), resources))

	ctx := withKey(context.Background(), "partner", "club")
	require.NoError(t, conn.Invoke(ctx, ListResourcesMethod, &structpb.Struct{}, new(structpb.Struct)))

	err := conn.Invoke(ctx, ListResourcesMethod, &structpb.Struct{}, new(structpb.Struct))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestCheckAvailabilityArguments(t *testing.T) {
	svc := NewAvailabilityService(new(mockBookings), new(mockResources))

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"bad time", map[string]any{"start_at": "02.03.2030", "end_at": "2030-03-02T18:00:00Z"}},
		{"fractional id", map[string]any{"start_at": "2030-03-02T10:00:00Z", "end_at": "2030-03-02T18:00:00Z", "resource_id": 1.5}},
		{"negative id", map[string]any{"start_at": "2030-03-02T10:00:00Z", "end_at": "2030-03-02T18:00:00Z", "resource_id": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CheckAvailability(context.Background(), availabilityRequest(t, tt.fields))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestGRPCErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{domain.Validation("Start time must be before end time."), codes.InvalidArgument, "Start time must be before end time."},
		{domain.NotFound("Console not found."), codes.NotFound, "Console not found."},
		{domain.InvalidTransition("nope"), codes.FailedPrecondition, "nope"},
		{domain.NoResourceAvailable("none"), codes.FailedPrecondition, "none"},
		{domain.Forbidden("admins only"), codes.PermissionDenied, "admins only"},
		{domain.RateLimited("slow down"), codes.ResourceExhausted, "slow down"},
		{domain.StoreFailure("list bookings", errors.New("disk full")), codes.Internal, "internal error"},
		{errors.New("boom"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		st, ok := status.FromError(grpcError(tt.err))
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code())
		assert.Equal(t, tt.msg, st.Message())
	}
}

func TestServerCredentialsMisconfigured(t *testing.T) {
	dir := t.TempDir()

	_, err := serverCredentials(config.APITLSConfig{Enabled: true})
	assert.ErrorContains(t, err, "cert_file and key_file are required")

	_, err = serverCredentials(config.APITLSConfig{
		Enabled:           true,
		CertFile:          dir + "/server.crt",
		KeyFile:           dir + "/server.key",
		RequireClientCert: true,
	})
	assert.ErrorContains(t, err, "client_ca_file is required")

	_, err = serverCredentials(config.APITLSConfig{
		Enabled:  true,
		CertFile: dir + "/missing.crt",
		KeyFile:  dir + "/missing.key",
	})
	assert.ErrorContains(t, err, "load keypair")
}
