package domain

import "errors"

var (
	// ErrStoreUnavailable indica falha transitória do key-value store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound é o "confirmed absent" do colaborador relacional.
	ErrNotFound = errors.New("not found")

	// ErrLockNotAcquired é sinal de controle de fluxo, não falha.
	ErrLockNotAcquired = errors.New("lock not acquired")

	// ErrDuplicateAdmission marca um intent cujo pedido já existe no banco. É
	// logado e confirmado sem nova escrita.
	ErrDuplicateAdmission = errors.New("duplicate admission")

	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrUpstreamLoad        = errors.New("upstream load failure")

	// ErrRebuildContended indica que o teto de tentativas da reconstrução com mutex
	// foi atingido sem obter o lock nem encontrar o registro populado.
	ErrRebuildContended = errors.New("cache rebuild contended")

	ErrInvalidIntent   = errors.New("invalid order intent")
	ErrInvalidArgument = errors.New("invalid argument")
)
