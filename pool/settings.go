package pool

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/IvanBrykalov/typecache/internal/util"
	"github.com/IvanBrykalov/typecache/policy"
	"github.com/IvanBrykalov/typecache/policy/lru"
	"github.com/IvanBrykalov/typecache/policy/twoq"
)

// Policy names accepted by Settings.Policy.
const (
	PolicyLRU = "lru"
	Policy2Q  = "2q"
)

// Settings is the construction-time configuration shared by every scope of a
// Pool. It is fixed for the life of the Pool.
type Settings struct {
	// InitialCapacity pre-sizes each scope's cache.
	InitialCapacity int `yaml:"initial_capacity" validate:"gte=0,ltefield=MaximumSize"`

	// MaximumSize is the hard entry limit of each scope.
	MaximumSize int `yaml:"maximum_size" validate:"gt=0"`

	// ExpireAfterAccess drops entries not read or registered for this long.
	// Scopes are swept every ExpireAfterAccess/2, so it must be even.
	ExpireAfterAccess time.Duration `yaml:"expire_after_access" validate:"gt=0,even"`

	// Shards per scope cache; 0 = auto.
	Shards int `yaml:"shards" validate:"gte=0,lte=256"`

	// ReapInterval is how often the sweeper reaps scopes of collected owners,
	// in addition to runtime cleanups. 0 disables the periodic reap.
	ReapInterval time.Duration `yaml:"reap_interval" validate:"gte=0"`

	// Policy selects the capacity eviction policy: "lru" (default) or "2q".
	Policy string `yaml:"policy" validate:"omitempty,oneof=lru 2q"`
}

// DefaultSettings returns the settings used for type resolution caches:
// 500 initial entries, at most 10000, expiring 10s after the last access.
func DefaultSettings() Settings {
	return Settings{
		InitialCapacity:   500,
		MaximumSize:       10_000,
		ExpireAfterAccess: 10 * time.Second,
		ReapInterval:      30 * time.Second,
		Policy:            PolicyLRU,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "even" holds for integer kinds (durations included) divisible by two.
	_ = v.RegisterValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	})
	return v
}

// Validate reports the first invalid field, if any.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("pool: invalid settings: %w", err)
	}
	return nil
}

// SweepPeriod is the interval at which each scope is maintained.
func (s Settings) SweepPeriod() time.Duration { return s.ExpireAfterAccess / 2 }

// newPolicy builds the eviction policy for scopes. 2Q queues are sized per
// shard, matching how the cache splits MaximumSize.
func newPolicy[V any](s Settings) policy.Policy[string, V] {
	if s.Policy != Policy2Q {
		return lru.New[string, V]()
	}
	perShard := s.MaximumSize / util.ShardCount(s.Shards, s.MaximumSize)
	return twoq.New[string, V](perShard/4, perShard/2)
}
