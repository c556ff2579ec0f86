package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// feed-producer writes full-channel messages to the Kafka topic booksync reads with
// FEED_SOURCE=kafka. Messages come from a recording (one JSON message per line) or from a
// synthetic stream for a single product.
func main() {
	var (
		brokers   = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic     = flag.String("topic", "book-events", "Kafka topic name")
		file      = flag.String("file", "", "recorded feed, one JSON message per line (optional, generates events if not provided)")
		delay     = flag.Duration("delay", 10*time.Millisecond, "Delay between messages")
		count     = flag.Int("count", 1000, "Number of events to generate")
		product   = flag.String("product", "BTC-USD", "Product of generated events")
		sequence  = flag.Int64("start-sequence", 0, "Sequence the generated stream continues from")
		basePrice = flag.Float64("base-price", 3945.5, "Base price of generated orders")
		spread    = flag.Float64("price-spread", 200.0, "Price spread of generated orders")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed of the generated stream")
	)
	flag.Parse()

	l, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create Kafka writer
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	var next func() (*feedv1.Event, error)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("Failed to open file %s: %v", *file, err)
		}
		defer f.Close()
		next = recording(bufio.NewScanner(f))
	} else {
		gen := newGenerator(*product, *sequence, *basePrice, *spread, *seed)
		remaining := *count
		next = func() (*feedv1.Event, error) {
			if remaining == 0 {
				return nil, nil
			}
			remaining--
			return gen.next()
		}
	}

	l.Info("Producing feed",
		logger.NewField("brokers", *brokers),
		logger.NewField("topic", *topic),
		logger.NewField("file", *file),
		logger.NewField("delay", delay.String()),
	)

	sent := 0
	for {
		event, err := next()
		if err != nil {
			l.Error(err, logger.NewField("sent", sent))
			return
		}
		if event == nil {
			break
		}

		value, err := event.Bytes()
		if err != nil {
			l.Error(err, logger.NewField("sequence", event.Sequence))
			continue
		}

		// Keyed by product so every product stays on one partition, in order
		msg := kafka.Message{
			Key:   []byte(event.ProductID),
			Value: value,
			Time:  time.Now(),
		}
		if err := writer.WriteMessages(ctx, msg); err != nil {
			l.Error(err, logger.NewField("sequence", event.Sequence))
			return
		}

		sent++
		if sent%100 == 0 {
			l.Info("Progress",
				logger.NewField("sent", sent),
				logger.NewField("product_id", event.ProductID),
				logger.NewField("sequence", event.Sequence),
			)
		}

		select {
		case <-ctx.Done():
			l.Info("Interrupted", logger.NewField("sent", sent))
			return
		case <-time.After(*delay):
		}
	}

	l.Info("Done", logger.NewField("sent", sent))
}

// recording returns the messages of a recorded feed in order. Blank lines are skipped.
func recording(scanner *bufio.Scanner) func() (*feedv1.Event, error) {
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return func() (*feedv1.Event, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			return feedv1.Decode([]byte(line))
		}
		return nil, scanner.Err()
	}
}
