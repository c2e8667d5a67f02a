package crypto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// contentHashSize размер дайджеста в байтах (64 бита)
const contentHashSize = 8

// ContentHash вычисляет детерминированный хеш payload операции.
// Используется только как подсказка для дедупликации: коллизии допустимы,
// настоящий ключ идемпотентности это operation_id.
// JSON канонизируется (ключи объектов сортируются), поэтому порядок полей не влияет на результат.
func ContentHash(operationType, entityType string, data []byte) (string, error) {
	canonical, err := CanonicalJSON(data)
	if err != nil {
		return "", err
	}

	h, err := blake2b.New(contentHashSize, nil)
	if err != nil {
		return "", fmt.Errorf("failed to init blake2b: %w", err)
	}

	// Разделитель исключает склейку полей ("AB"+"C" != "A"+"BC")
	h.Write([]byte(operationType))
	h.Write([]byte{0})
	h.Write([]byte(entityType))
	h.Write([]byte{0})
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON re-encodes data with sorted object keys and no insignificant whitespace
func CanonicalJSON(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("data contains trailing content")
	}

	// encoding/json сортирует ключи map при сериализации
	canonical, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical data: %w", err)
	}

	return canonical, nil
}
