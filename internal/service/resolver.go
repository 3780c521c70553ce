package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/audit"
	apperrors "github.com/web3guardian/guardian-server-go/internal/errors"
	"github.com/web3guardian/guardian-server-go/internal/model"
	"github.com/web3guardian/guardian-server-go/internal/repository"
)

// handleNamespace seeds the deterministic handle hash. Fixed forever: two
// independent processes must derive the same uuid for the same handle.
var handleNamespace = uuid.MustParse("8c2b9a40-51c3-5a96-9e40-72a8f2b1d6c4")

// HandleUUID derives the stable entity uuid for a handle (UUIDv5 over a fixed
// namespace).
func HandleUUID(handle string) string {
	return uuid.NewSHA1(handleNamespace, []byte(handle)).String()
}

type entityRegistrar interface {
	RegisterEntity(ctx context.Context, userID string, entity model.Entity) error
}

// EntityResolver maps handles to stable entity uuids and lazily registers
// entities with the reputation API, backed by a local registration cache.
type EntityResolver struct {
	entities  repository.EntityRepository
	registrar entityRegistrar
}

func NewEntityResolver(entities repository.EntityRepository, registrar entityRegistrar) *EntityResolver {
	return &EntityResolver{
		entities:  entities,
		registrar: registrar,
	}
}

// Resolve returns the uuid for a handle: the registered override when one
// exists, the deterministic hash otherwise.
func (r *EntityResolver) Resolve(ctx context.Context, handle string) (string, error) {
	record, err := r.entities.FindByHandle(ctx, handle)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if record != nil {
		return record.UUID, nil
	}
	return HandleUUID(handle), nil
}

// EnsureRegistered registers the entity remotely unless the cache already
// holds it. overrideID, when non-empty, replaces the deterministic uuid
// (e.g. a wallet address proven via signature). Registration failures are
// recoverable: the caller re-prompts instead of crashing.
func (r *EntityResolver) EnsureRegistered(ctx context.Context, userID, handle, overrideID string) (string, error) {
	record, err := r.entities.FindByHandle(ctx, handle)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if record != nil {
		return record.UUID, nil
	}

	entityUUID := overrideID
	if entityUUID == "" {
		entityUUID = HandleUUID(handle)
	}

	entity := model.Entity{
		Name: handle,
		IDs:  model.EntityIDs{UUID: entityUUID},
		Type: model.EntityTypeTelegramUser,
	}

	if err := r.registrar.RegisterEntity(ctx, userID, entity); err != nil {
		return "", fmt.Errorf("register entity %q: %w", handle, err)
	}

	if _, err := r.entities.Upsert(ctx, model.UpsertEntityParams{
		Handle: handle,
		UUID:   entityUUID,
		Type:   string(entity.Type),
	}); err != nil {
		// remote registration succeeded; a cache miss next time just means
		// one redundant remote call
		log.Warn().Err(err).Str("handle", handle).Msg("failed to cache entity registration")
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventEntityRegister,
		UserID: userID,
		Details: map[string]interface{}{
			"handle":   handle,
			"uuid":     entityUUID,
			"override": overrideID != "",
		},
	})

	return entityUUID, nil
}
