package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the authorizing credential. The rest of the system never
// touches key material; it hands over an unsigned transaction and gets back
// a hash.
type Signer interface {
	Address() common.Address
	SignAndSend(ctx context.Context, tx *gethtypes.Transaction) (common.Hash, error)
}

// LocalSigner signs with an in-process private key and submits through the
// ledger client. Transaction ordering for one key is strictly sequential,
// so a single LocalSigner must not be used for concurrent submissions.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	client  LedgerClient
}

// NewLocalSigner derives the signer from a hex-encoded private key.
func NewLocalSigner(privateKeyHex string, chainID uint64, client LedgerClient) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
		client:  client,
	}, nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignAndSend(ctx context.Context, tx *gethtypes.Transaction) (common.Hash, error) {
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signed.Hash(), nil
}
