package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"devlend/internal/availability"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// kiosk queries the availability API from the lobby terminal.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if err := run(); err != nil {
		logger.Fatal().Err(err).Msg("kiosk failed")
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8081", "availability API address")
	key := flag.String("key", os.Getenv("KIOSK_API_KEY"), "API key")
	extra := flag.String("extra", os.Getenv("KIOSK_API_EXTRA"), "API extra secret")
	redisAddr := flag.String("redis", "", "redis address for caching answers")
	from := flag.String("from", "", "window start, RFC 3339")
	to := flag.String("to", "", "window end, RFC 3339")
	resourceID := flag.Int64("resource", 0, "device id, 0 for any")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect %s: %w", *addr, err)
	}
	defer conn.Close()

	client := availability.NewClient(conn, *key, *extra)
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		client.UseRedisCache(rdb, 30*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *from == "" && *to == "" {
		return listResources(ctx, client)
	}

	start, err := time.Parse(time.RFC3339, *from)
	if err != nil {
		return fmt.Errorf("bad -from: %w", err)
	}
	end, err := time.Parse(time.RFC3339, *to)
	if err != nil {
		return fmt.Errorf("bad -to: %w", err)
	}

	result, err := client.Check(ctx, start, end, *resourceID)
	if err != nil {
		return err
	}
	if result.Available {
		fmt.Println("available")
		return nil
	}
	fmt.Printf("not available: %s\n", result.Reason)
	return nil
}

func listResources(ctx context.Context, client *availability.Client) error {
	list, err := client.ListResources(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEVICE\tSTATUS\tPER DAY")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Label, r.Status, availability.FormatPrice(r.PricePerDay))
	}
	return w.Flush()
}
