package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rogeecn/vpsdash/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Gateway is the only path to the vpsAccounts collection. Every call is a
// live round trip to the store; concurrent writers follow last-write-wins.
type Gateway struct {
	store store.Store
	codec *Codec
	now   func() time.Time
}

func NewGateway(st store.Store, codec *Codec) *Gateway {
	return &Gateway{
		store: st,
		codec: codec,
		now:   time.Now,
	}
}

// SealResult summarises a SealLegacy pass. Skipped counts legacy records
// whose ciphertext could not be read and were left untouched.
type SealResult struct {
	Scanned int
	Sealed  int
	Skipped int
}

// ListByType returns the decoded records whose type matches tag ignoring
// case, newest first. "" and "*" select every record.
func (g *Gateway) ListByType(ctx context.Context, tag string) ([]Account, error) {
	all := tag == "" || tag == "*"
	var want Protocol
	if !all {
		p, err := ParseProtocol(tag)
		if err != nil {
			return nil, &ValidationError{Err: validation.Errors{"type": err}}
		}
		want = p
	}

	records, err := g.fetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	matched := lo.Filter(lo.Values(records), func(a Account, _ int) bool {
		return all || a.Type.Is(want)
	})
	decoded := lo.Map(matched, func(a Account, _ int) Account {
		return g.codec.DecodeForDisplay(a)
	})
	sortNewestFirst(decoded)
	return decoded, nil
}

// Collection returns every decoded record keyed by id.
func (g *Gateway) Collection(ctx context.Context) (map[string]Account, error) {
	records, err := g.fetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return lo.MapValues(records, func(a Account, _ string) Account {
		return g.codec.DecodeForDisplay(a)
	}), nil
}

func (g *Gateway) Get(ctx context.Context, id string) (Account, error) {
	current, err := g.load(ctx, id)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return g.codec.DecodeForDisplay(current), nil
}

// Create validates draft, stamps it, seals it and writes it under a fresh key.
func (g *Gateway) Create(ctx context.Context, draft Account) (string, error) {
	a := draft.normalize()
	a.ID = ""
	a.Encrypted = false
	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.UserID == "" {
		a.UserID = DefaultUserID
	}
	a = a.withFieldSet()
	if err := a.Validate(); err != nil {
		return "", &ValidationError{Err: err}
	}

	now := g.now().UnixMilli()
	a.CreatedAt = now
	a.UpdatedAt = now

	encoded, err := g.codec.EncodeForStorage(a)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	id, err := g.store.Push(ctx, CollectionPath)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	if err := g.store.Set(ctx, recordPath(id), encoded); err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}

	log.Info().
		Str("id", id).
		Str("type", string(a.Type)).
		Str("user_id", a.UserID).
		Msg("account created")
	return id, nil
}

// Update merges patch into the stored record. The record is decoded strictly
// so a value that no longer decrypts is never written back blank.
func (g *Gateway) Update(ctx context.Context, id string, patch Patch) error {
	current, err := g.load(ctx, id)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	plain, err := g.codec.Decode(current)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	merged := plain
	patch.apply(&merged)
	merged = merged.normalize().withFieldSet()
	merged.ID = ""
	merged.CreatedAt = current.CreatedAt
	merged.UserID = current.UserID
	if merged.UserID == "" {
		merged.UserID = DefaultUserID
	}
	if err := merged.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	merged.UpdatedAt = max(g.now().UnixMilli(), current.UpdatedAt+1)

	encoded, err := g.codec.EncodeForStorage(merged)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if err := g.store.Set(ctx, recordPath(id), encoded); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	log.Info().Str("id", id).Str("type", string(merged.Type)).Msg("account updated")
	return nil
}

func (g *Gateway) Delete(ctx context.Context, id string) error {
	if _, err := g.load(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := g.store.Remove(ctx, recordPath(id)); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	log.Info().Str("id", id).Msg("account deleted")
	return nil
}

// SealLegacy encrypts records written before field encryption existed.
// Legacy ciphertext is decrypted first so it is never sealed twice; records
// that cannot be read are skipped. Each record is re-read right before it is
// patched so a concurrent delete is not undone. updatedAt is kept.
func (g *Gateway) SealLegacy(ctx context.Context) (SealResult, error) {
	var result SealResult

	records, err := g.fetchAll(ctx)
	if err != nil {
		return result, fmt.Errorf("seal legacy accounts: %w", err)
	}

	var errs []error
	for _, id := range sortedKeys(records) {
		result.Scanned++
		if records[id].Encrypted {
			continue
		}

		current, err := g.load(ctx, id)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				log.Debug().Str("id", id).Msg("account: record removed before sealing")
				continue
			}
			errs = append(errs, fmt.Errorf("seal %s: %w", id, err))
			continue
		}
		if current.Encrypted {
			continue
		}

		plain, err := g.codec.Decode(current)
		if err != nil {
			result.Skipped++
			log.Warn().Err(err).Str("id", id).Msg("account: legacy record left unsealed")
			continue
		}
		encoded, err := g.codec.EncodeForStorage(plain)
		if err != nil {
			errs = append(errs, fmt.Errorf("seal %s: %w", id, err))
			continue
		}

		patch := map[string]any{"encrypted": true}
		if encoded.Password != "" {
			patch["password"] = encoded.Password
		}
		if encoded.Config != "" {
			patch["config"] = encoded.Config
		}
		if err := g.store.Update(ctx, recordPath(id), patch); err != nil {
			errs = append(errs, fmt.Errorf("seal %s: %w", id, err))
			continue
		}

		result.Sealed++
		log.Info().Str("id", id).Msg("account: legacy record sealed")
	}

	if len(errs) > 0 {
		return result, fmt.Errorf("seal legacy accounts: %w", errors.Join(errs...))
	}
	return result, nil
}

// fetchAll reads the stored (still encoded) collection with ids filled in.
func (g *Gateway) fetchAll(ctx context.Context) (map[string]Account, error) {
	raw, err := g.store.Get(ctx, CollectionPath)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]Account{}, nil
	}

	var bodies map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bodies); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	records := make(map[string]Account, len(bodies))
	for id, body := range bodies {
		var a Account
		if err := json.Unmarshal(body, &a); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("account: skipping malformed record")
			continue
		}
		a.ID = id
		records[id] = a
	}
	return records, nil
}

// load reads one stored record or reports it as not found.
func (g *Gateway) load(ctx context.Context, id string) (Account, error) {
	if !store.ValidKey(id) {
		return Account{}, &NotFoundError{ID: id}
	}

	raw, err := g.store.Get(ctx, recordPath(id))
	if err != nil {
		return Account{}, err
	}
	if raw == nil {
		return Account{}, &NotFoundError{ID: id}
	}

	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return Account{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	a.ID = id
	return a, nil
}

func recordPath(id string) string {
	return CollectionPath + "/" + id
}

func sortNewestFirst(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt != accounts[j].CreatedAt {
			return accounts[i].CreatedAt > accounts[j].CreatedAt
		}
		return accounts[i].ID < accounts[j].ID
	})
}

func sortedKeys(records map[string]Account) []string {
	keys := lo.Keys(records)
	sort.Strings(keys)
	return keys
}
