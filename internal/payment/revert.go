package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mtecstake/autostake/pkg/types"
)

const revertMarker = "execution reverted"

// DecodeRevert turns a failed call or transaction submission into a
// *types.RevertError when the node reported a revert, decoding the
// Error(string) payload if one was returned. User rejections and
// transport errors are passed through wrapped with the method name.
func DecodeRevert(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrUserRejected) {
		return err
	}
	var rev *types.RevertError
	if errors.As(err, &rev) {
		return err
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return &types.RevertError{Method: method, Reason: reason, Err: err}
		}
	}

	msg := err.Error()
	if i := strings.Index(strings.ToLower(msg), revertMarker); i >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(msg[i+len(revertMarker):], ":"))
		return &types.RevertError{Method: method, Reason: reason, Err: err}
	}

	return fmt.Errorf("%s: %w", method, err)
}

func unpackRevertData(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok || s == "" {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
