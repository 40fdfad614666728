package publisher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/metrics"
)

type Publisher struct {
	client *kgo.Client
	mu     sync.RWMutex
}

var (
	instance *Publisher
	once     sync.Once
)

type PublishableMessage[T common.BlockHeader | common.Log | common.Transaction] struct {
	Data   T      `json:"data"`
	Status string `json:"status"`
}

// GetInstance returns the singleton Publisher instance
func GetInstance() *Publisher {
	once.Do(func() {
		instance = &Publisher{}
		if err := instance.initialize(); err != nil {
			log.Error().Err(err).Msg("Failed to initialize publisher")
		}
	})
	return instance
}

func (p *Publisher) initialize() error {
	if !config.Cfg.Publisher.Enabled {
		log.Debug().Msg("Publisher is disabled, skipping initialization")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if config.Cfg.Publisher.Brokers == "" {
		log.Info().Msg("No Kafka brokers configured, skipping publisher initialization")
		return nil
	}

	brokers := strings.Split(config.Cfg.Publisher.Brokers, ",")
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ClientID(fmt.Sprintf("evmstream-processor-%s", config.Cfg.Chain.ID)),
		kgo.MaxBufferedRecords(1_000_000),
		kgo.ProducerBatchMaxBytes(16_000_000),
		kgo.RecordPartitioner(kgo.UniformBytesPartitioner(1_000_000, false, false, nil)),
		kgo.MetadataMaxAge(60 * time.Second),
		kgo.DialTimeout(10 * time.Second),
	}

	if config.Cfg.Publisher.Username != "" && config.Cfg.Publisher.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: config.Cfg.Publisher.Username,
			Pass: config.Cfg.Publisher.Password,
		}.AsMechanism()))
		tlsDialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
		opts = append(opts, kgo.Dialer(tlsDialer.DialContext))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("failed to create Kafka client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Kafka: %v", err)
	}
	p.client = client
	return nil
}

// PublishBlockData fans a processed batch out to the per-entity topics.
func (p *Publisher) PublishBlockData(blockData []common.BlockData) error {
	if p.client == nil || len(blockData) == 0 {
		return nil
	}

	publishStart := time.Now()

	var blockMessages []*kgo.Record
	var logMessages []*kgo.Record
	var txMessages []*kgo.Record

	for _, data := range blockData {
		if config.Cfg.Publisher.Blocks.Enabled {
			blockMsg, err := p.createBlockMessage(data.Header)
			if err != nil {
				return fmt.Errorf("failed to create block message: %v", err)
			}
			blockMessages = append(blockMessages, blockMsg)
		}

		for _, item := range data.Items {
			switch item.Kind {
			case common.ItemKindLog:
				if !config.Cfg.Publisher.Logs.Enabled {
					continue
				}
				logMsg, err := p.createLogMessage(*item.Log)
				if err != nil {
					return fmt.Errorf("failed to create log message: %v", err)
				}
				logMessages = append(logMessages, logMsg)
			case common.ItemKindTransaction:
				if !config.Cfg.Publisher.Transactions.Enabled {
					continue
				}
				txMsg, err := p.createTransactionMessage(*item.Transaction)
				if err != nil {
					return fmt.Errorf("failed to create transaction message: %v", err)
				}
				txMessages = append(txMessages, txMsg)
			}
		}
	}

	if err := p.publishMessages(context.Background(), blockMessages); err != nil {
		return fmt.Errorf("failed to publish block messages: %v", err)
	}
	if err := p.publishMessages(context.Background(), logMessages); err != nil {
		return fmt.Errorf("failed to publish log messages: %v", err)
	}
	if err := p.publishMessages(context.Background(), txMessages); err != nil {
		return fmt.Errorf("failed to publish transaction messages: %v", err)
	}

	metrics.PublishDuration.Observe(time.Since(publishStart).Seconds())
	metrics.PublisherBlockCounter.Add(float64(len(blockData)))
	metrics.LastPublishedBlock.Set(float64(blockData[len(blockData)-1].Header.Height))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		log.Debug().Msg("Publisher client closed")
	}
	return nil
}

func (p *Publisher) publishMessages(ctx context.Context, messages []*kgo.Record) error {
	if len(messages) == 0 {
		return nil
	}

	if !config.Cfg.Publisher.Enabled {
		log.Debug().Msg("Publisher is disabled, skipping publish")
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.client == nil {
		return nil // Skip if no client configured
	}

	var wg sync.WaitGroup
	wg.Add(len(messages))
	for _, msg := range messages {
		p.client.Produce(ctx, msg, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				log.Error().Err(err).Msg("Failed to publish message to Kafka")
			}
		})
	}
	wg.Wait()

	return nil
}

func (p *Publisher) createBlockMessage(header common.BlockHeader) (*kgo.Record, error) {
	msg := PublishableMessage[common.BlockHeader]{
		Data:   header,
		Status: "new",
	}
	msgJson, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block data: %v", err)
	}
	return &kgo.Record{
		Topic: p.getTopicName("blocks"),
		Key:   []byte(fmt.Sprintf("block-%s-%s", config.Cfg.Chain.ID, header.Hash)),
		Value: msgJson,
	}, nil
}

func (p *Publisher) createLogMessage(evmLog common.Log) (*kgo.Record, error) {
	msg := PublishableMessage[common.Log]{
		Data:   evmLog,
		Status: "new",
	}
	msgJson, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log data: %v", err)
	}
	return &kgo.Record{
		Topic: p.getTopicName("logs"),
		Key:   []byte(fmt.Sprintf("log-%s-%s", config.Cfg.Chain.ID, evmLog.Id)),
		Value: msgJson,
	}, nil
}

func (p *Publisher) createTransactionMessage(tx common.Transaction) (*kgo.Record, error) {
	msg := PublishableMessage[common.Transaction]{
		Data:   tx,
		Status: "new",
	}
	msgJson, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction data: %v", err)
	}
	return &kgo.Record{
		Topic: p.getTopicName("transactions"),
		Key:   []byte(fmt.Sprintf("transaction-%s-%s", config.Cfg.Chain.ID, tx.Hash)),
		Value: msgJson,
	}, nil
}

func (p *Publisher) getTopicName(entity string) string {
	chainIdSuffix := ""
	if config.Cfg.Chain.ID != "" {
		chainIdSuffix = fmt.Sprintf(".%s", config.Cfg.Chain.ID)
	}
	switch entity {
	case "blocks":
		if config.Cfg.Publisher.Blocks.TopicName != "" {
			return config.Cfg.Publisher.Blocks.TopicName
		}
		return fmt.Sprintf("evmstream.blocks%s", chainIdSuffix)
	case "logs":
		if config.Cfg.Publisher.Logs.TopicName != "" {
			return config.Cfg.Publisher.Logs.TopicName
		}
		return fmt.Sprintf("evmstream.logs%s", chainIdSuffix)
	case "transactions":
		if config.Cfg.Publisher.Transactions.TopicName != "" {
			return config.Cfg.Publisher.Transactions.TopicName
		}
		return fmt.Sprintf("evmstream.transactions%s", chainIdSuffix)
	default:
		return ""
	}
}
