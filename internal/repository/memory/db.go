// Package memory provides in-process implementations of the repository
// interfaces. They back the test suites and the "memory" database driver.
package memory

import (
	"alcyxob/health-protocols/internal/domain"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DB holds every in-memory table behind a single lock.
type DB struct {
	mu          sync.RWMutex
	users       map[primitive.ObjectID]*domain.User
	templates   map[string]*domain.ProtocolTemplate
	protocols   map[primitive.ObjectID]*domain.Protocol
	assignments map[primitive.ObjectID]*domain.ProtocolAssignment
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{
		users:       make(map[primitive.ObjectID]*domain.User),
		templates:   make(map[string]*domain.ProtocolTemplate),
		protocols:   make(map[primitive.ObjectID]*domain.Protocol),
		assignments: make(map[primitive.ObjectID]*domain.ProtocolAssignment),
	}
}
