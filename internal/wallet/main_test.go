package wallet

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// geth's keystore.NewKeyStore() spawns fsnotify watchers that have
		// no Close() method, so they outlive the tests.
		goleak.IgnoreTopFunction("github.com/ethereum/go-ethereum/accounts/keystore.(*watcher).loop"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
		goleak.IgnoreAnyFunction("github.com/ethereum/go-ethereum/accounts/keystore.(*KeyStore).updater"),
	)
}
