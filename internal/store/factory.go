package store

import (
	"fmt"
	"sort"
	"sync"
)

// Builder creates a record store from config.
type Builder func(config Config) (Store, error)

// UserBuilder creates a user store from config.
type UserBuilder func(config Config) (UserStore, error)

// DefaultFactory keeps the registered store builders.
type DefaultFactory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	users    map[string]UserBuilder
}

var globalFactory = &DefaultFactory{
	builders: make(map[string]Builder),
	users:    make(map[string]UserBuilder),
}

// RegisterStoreType registers a record store type with the global factory.
func RegisterStoreType(storeType string, builder Builder) {
	globalFactory.RegisterStoreType(storeType, builder)
}

// RegisterUserStoreType registers a user store type with the global factory.
func RegisterUserStoreType(storeType string, builder UserBuilder) {
	globalFactory.RegisterUserStoreType(storeType, builder)
}

// NewFromConfig creates a record store using the global factory.
func NewFromConfig(config Config) (Store, error) {
	return globalFactory.CreateStore(config)
}

// NewUserStoreFromConfig creates a user store using the global factory.
func NewUserStoreFromConfig(config Config) (UserStore, error) {
	return globalFactory.CreateUserStore(config)
}

// SupportedTypes returns the record store types of the global factory.
func SupportedTypes() []string {
	return globalFactory.SupportedTypes()
}

func (f *DefaultFactory) RegisterStoreType(storeType string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[storeType] = builder
}

func (f *DefaultFactory) RegisterUserStoreType(storeType string, builder UserBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[storeType] = builder
}

func (f *DefaultFactory) CreateStore(config Config) (Store, error) {
	f.mu.RLock()
	builder, ok := f.builders[config.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported store type: %q (supported: %v)", config.Type, f.SupportedTypes())
	}
	return builder(config)
}

func (f *DefaultFactory) CreateUserStore(config Config) (UserStore, error) {
	f.mu.RLock()
	builder, ok := f.users[config.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported user store type: %q", config.Type)
	}
	return builder(config)
}

func (f *DefaultFactory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
