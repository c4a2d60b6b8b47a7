package mints

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/outbox/idempotency"
	"github.com/kitea/hunt-backend/pkg/outbox/payloads"
	"github.com/kitea/hunt-backend/pkg/outbox/registry"
)

const mintWorkerConsumer = "mint-worker"

type minter interface {
	Mint(ctx context.Context, req MintRequest) (*MintResult, error)
}

// WalletDrainer mints every pending record of a user that now has a wallet.
type WalletDrainer interface {
	DrainUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns mint_requested and wallet_attached events into chain mints.
type Consumer struct {
	minter       minter
	drainer      WalletDrainer
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  processedGuard
	logg         *logger.Logger
}

type ConsumerParams struct {
	Minter       minter
	Drainer      WalletDrainer
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Minter == nil {
		return nil, fmt.Errorf("mint service required")
	}
	if params.Drainer == nil {
		return nil, fmt.Errorf("wallet drainer required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("mint subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return newConsumer(params.Minter, params.Drainer, params.Subscription, params.Idempotency, params.Logger), nil
}

func newConsumer(m minter, drainer WalletDrainer, sub *pubsub.Subscriber, guard processedGuard, logg *logger.Logger) *Consumer {
	return &Consumer{
		minter:       m,
		drainer:      drainer,
		subscription: sub,
		decoders:     NewDecoders(),
		idempotency:  guard,
		logg:         logg,
	}
}

// NewDecoders registers the payload decoders understood by the mint worker.
func NewDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventMintRequested, 1, func(raw json.RawMessage) (interface{}, error) {
		var payload payloads.MintRequestedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	decoders.Register(enums.EventWalletAttached, 1, func(raw json.RawMessage) (interface{}, error) {
		var payload payloads.WalletAttachedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	return decoders
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventMintRequested && eventType != enums.EventWalletAttached {
		c.logg.Info(logCtx, "skipping event not handled by mint worker")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, mintWorkerConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(logCtx, decoded); err != nil {
		if !pkgerrors.IsRetryable(err) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "mint event dropped")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "mint event failed, redelivering", err)
		_ = c.idempotency.Delete(ctx, mintWorkerConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, decoded interface{}) error {
	switch payload := decoded.(type) {
	case payloads.MintRequestedEvent:
		result, err := c.minter.Mint(ctx, MintRequest{
			UserID:         payload.UserID,
			HuntLocationID: payload.HuntLocationID,
			ScanID:         payload.ScanID,
			ScanNumber:     payload.ScanNumber,
			IsFounder:      payload.IsFounder,
		})
		if err != nil {
			return err
		}
		c.logg.Info(c.logg.WithField(ctx, "status", string(result.Status)), "mint request handled")
		return nil
	case payloads.WalletAttachedEvent:
		minted, err := c.drainer.DrainUser(ctx, payload.UserID)
		if err != nil {
			return err
		}
		c.logg.Info(c.logg.WithField(ctx, "minted", minted), "wallet drained")
		return nil
	default:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unexpected payload %T", decoded)
	}
}
