package payment

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestKeySigner_SignTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	signer := NewKeySigner(key)
	if signer.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatal("address does not match key")
	}

	to := common.HexToAddress("0x01")
	tx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(1e9), nil)
	chainID := big.NewInt(56)

	signed, err := signer.SignTx(context.Background(), tx, chainID)
	if err != nil {
		t.Fatalf("SignTx() error = %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatal(err)
	}
	if from != signer.Address() {
		t.Errorf("recovered %s, want %s", from.Hex(), signer.Address().Hex())
	}
}
