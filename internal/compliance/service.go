package compliance

import "sync"

// Service is the command/query surface of the audit workflow. It owns the
// connection rules, the audit lifecycle and the item review state machine,
// and coordinates the repository and the blob store.
//
// Every mutation of an audit or one of its items runs under that audit's
// lock, so finalization always observes complete writes.
type Service struct {
	repo   Repository
	blobs  BlobStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
	codes  CodeGenerator

	locks    *keyedMutex
	connMu   sync.Mutex // serializes connection requests
	registMu sync.Mutex // serializes code allocation
}

// NewService creates a Service with the provided dependencies.
// blobs may be nil when no evidence files will be stored.
func NewService(repo Repository, blobs BlobStore, logger Logger, clock Clock, idgen IDGenerator, codes CodeGenerator) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		repo:   repo,
		blobs:  blobs,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		codes:  codes,
		locks:  newKeyedMutex(),
	}
}
