package executor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/zeebo/blake3"
)

const refPrefix = "blake3:"

// OutputRef returns the content hash of an output over its JSON encoding.
// Processors emit normalized values and encoding/json sorts map keys, so
// equal outputs hash equally.
func OutputRef(out domain.Output) (string, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode output: %w", err)
	}
	sum := blake3.Sum256(data)
	return refPrefix + hex.EncodeToString(sum[:]), nil
}
