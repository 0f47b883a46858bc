// Package availability is a client for the read-only gRPC availability API
// used by kiosks and partner systems.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"devlend/internal/api"
	"devlend/internal/models"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const cachePrefix = "devlend:availability:"

// Resource is a catalogue entry as the API reports it.
type Resource struct {
	ID          int64                 `json:"id"`
	Label       string                `json:"label"`
	Status      models.ResourceStatus `json:"status"`
	PricePerDay *int64                `json:"price_per_day,omitempty"`
}

type Client struct {
	conn        grpc.ClientConnInterface
	keyHeader   string
	extraHeader string
	apiKey      string
	apiExtra    string

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient wraps an established connection. Empty headers fall back to
// x-api-key and x-api-extra.
func NewClient(conn grpc.ClientConnInterface, apiKey, apiExtra string) *Client {
	return &Client{
		conn:        conn,
		keyHeader:   "x-api-key",
		extraHeader: "x-api-extra",
		apiKey:      apiKey,
		apiExtra:    apiExtra,
	}
}

// SetHeaders overrides the metadata keys the credentials travel in.
func (c *Client) SetHeaders(keyHeader, extraHeader string) {
	if keyHeader != "" {
		c.keyHeader = keyHeader
	}
	if extraHeader != "" {
		c.extraHeader = extraHeader
	}
}

// UseRedisCache caches answers in Redis for ttl.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, c.keyHeader, c.apiKey, c.extraHeader, c.apiExtra)
}

// Check asks whether [start, end) can be served, on resourceID when it is
// non-zero or on any device otherwise.
func (c *Client) Check(ctx context.Context, start, end time.Time, resourceID int64) (*models.Availability, error) {
	cacheKey := fmt.Sprintf("%scheck:%d:%d:%d", cachePrefix, start.Unix(), end.Unix(), resourceID)
	var result models.Availability
	if c.readCache(ctx, cacheKey, &result) {
		return &result, nil
	}

	fields := map[string]any{
		"start_at": start.UTC().Format(time.RFC3339),
		"end_at":   end.UTC().Format(time.RFC3339),
	}
	if resourceID > 0 {
		fields["resource_id"] = resourceID
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), api.CheckAvailabilityMethod, in, out); err != nil {
		return nil, err
	}

	f := out.GetFields()
	result = models.Availability{
		Available: f["available"].GetBoolValue(),
		Reason:    f["reason"].GetStringValue(),
		Cause:     models.AvailabilityCause(f["cause"].GetStringValue()),
	}
	c.writeCache(ctx, cacheKey, result)
	return &result, nil
}

// ListResources returns the device catalogue.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	cacheKey := cachePrefix + "resources"
	var list []Resource
	if c.readCache(ctx, cacheKey, &list) {
		return list, nil
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), api.ListResourcesMethod, &structpb.Struct{}, out); err != nil {
		return nil, err
	}

	values := out.GetFields()["resources"].GetListValue().GetValues()
	list = make([]Resource, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		r := Resource{
			ID:     int64(f["id"].GetNumberValue()),
			Label:  f["label"].GetStringValue(),
			Status: models.ResourceStatus(f["status"].GetStringValue()),
		}
		if p, ok := f["price_per_day"]; ok {
			price := int64(p.GetNumberValue())
			r.PricePerDay = &price
		}
		list = append(list, r)
	}
	c.writeCache(ctx, cacheKey, list)
	return list, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// FormatPrice renders a daily rate for listings, "-" when unset.
func FormatPrice(p *int64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatInt(*p, 10)
}
