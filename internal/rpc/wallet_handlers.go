package rpc

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/wallet"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

// handleWalletGenerate replaces the node wallet with a fresh key. With a
// name the key is derived from a new mnemonic stored in the keystore;
// without one it lives in memory until the node stops.
func (s *Server) handleWalletGenerate(req *Request) (interface{}, *Error) {
	var params WalletGenerateParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}

	var (
		w        *wallet.Wallet
		mnemonic string
	)
	if params.Name != "" {
		if s.keystore == nil {
			return nil, &Error{Code: CodeInternalError, Message: "wallet not enabled (start node with --wallet)"}
		}
		if params.Password == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "password is required with name"}
		}
		var err error
		w, mnemonic, err = wallet.Generate(s.keystore, params.Name, []byte(params.Password), wallet.DefaultParams())
		if err != nil {
			if errors.Is(err, wallet.ErrWalletExists) || errors.Is(err, wallet.ErrInvalidName) {
				return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
			}
			return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("create wallet: %v", err)}
		}
	} else {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("generate key: %v", err)}
		}
		w = wallet.FromKey(key)
	}

	s.SetWallet(w)
	s.logger.Info().
		Str("wallet", w.Name()).
		Str("address", w.Address().Short()).
		Msg("Node wallet generated")

	return &WalletGenerateResult{
		Name:       w.Name(),
		Address:    w.Address().String(),
		PublicKey:  w.Address().String(),
		PrivateKey: w.PrivateKeyHex(),
		Mnemonic:   mnemonic,
	}, nil
}

func (s *Server) handleWalletGetInfo(_ *Request) (interface{}, *Error) {
	w := s.Wallet()
	if w == nil {
		return &WalletInfoResult{}, nil
	}
	balance, err := s.ledger.Balance(w.Address())
	if err != nil {
		return nil, ledgerError(err)
	}
	return &WalletInfoResult{
		Loaded:  true,
		Name:    w.Name(),
		Account: w.Account(),
		Address: w.Address().String(),
		Balance: balance,
	}, nil
}
