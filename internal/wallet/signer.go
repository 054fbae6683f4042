package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const authPrefix = "w3mint"

var (
	// ErrCallerMismatch is returned when a signature recovers to an address
	// other than the one the authorization claims.
	ErrCallerMismatch = errors.New("signature does not match caller")
	// ErrBadSignature is returned for signatures that are not 65-byte
	// [R || S || V] with V of 27 or 28.
	ErrBadSignature = errors.New("malformed signature")
	// ErrRequestMismatch is returned when a signed message is not for the
	// action and arguments being executed.
	ErrRequestMismatch = errors.New("signed request does not match")
)

// Authorization is an EIP-191 signed request to perform a sale action. The
// sale engine only trusts the address recovered from the signature.
type Authorization struct {
	Claimed   common.Address
	Message   []byte
	Signature []byte
}

// Caller recovers the signing address and checks it against the claimed one.
func (a *Authorization) Caller() (common.Address, error) {
	addr, err := Recover(a.Message, a.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if addr != a.Claimed {
		return common.Address{}, fmt.Errorf("%w: recovered %s, claimed %s", ErrCallerMismatch, addr.Hex(), a.Claimed.Hex())
	}
	return addr, nil
}

// Action returns the action name the message was signed for.
func (a *Authorization) Action() string {
	action, _, _ := a.fields()
	return action
}

// Args returns the arguments signed after the nonce.
func (a *Authorization) Args() []string {
	_, _, args := a.fields()
	return args
}

// Verify recovers the caller and checks that the message was signed for
// exactly action and args under a well-formed nonce.
func (a *Authorization) Verify(action string, args ...string) (common.Address, error) {
	caller, err := a.Caller()
	if err != nil {
		return common.Address{}, err
	}
	signed, nonce, signedArgs := a.fields()
	if signed != action {
		return common.Address{}, fmt.Errorf("%w: signed for %q, executing %q", ErrRequestMismatch, signed, action)
	}
	if _, err := uuid.Parse(nonce); err != nil {
		return common.Address{}, fmt.Errorf("%w: nonce %q", ErrRequestMismatch, nonce)
	}
	if !slices.Equal(signedArgs, args) {
		return common.Address{}, fmt.Errorf("%w: signed %q, executing %q", ErrRequestMismatch, signedArgs, args)
	}
	return caller, nil
}

// fields splits "w3mint:<action>:<nonce>:<args...>".
func (a *Authorization) fields() (action, nonce string, args []string) {
	parts := strings.Split(string(a.Message), ":")
	if len(parts) < 3 || parts[0] != authPrefix {
		return "", "", nil
	}
	return parts[1], parts[2], parts[3:]
}

// Recover returns the address that produced sig over the personal_sign
// digest of message.
func Recover(message, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrBadSignature, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] != 27 && sig[crypto.RecoveryIDOffset] != 28 {
		return common.Address{}, fmt.Errorf("%w: v=%d", ErrBadSignature, sig[crypto.RecoveryIDOffset])
	}
	raw := common.CopyBytes(sig)
	raw[crypto.RecoveryIDOffset] -= 27

	pub, err := crypto.SigToPub(accounts.TextHash(message), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Signer signs sale actions for a signing wallet.
type Signer struct {
	wallet *Wallet
	ks     KeystoreBackend
}

// NewSigner creates a signer for the given wallet.
func NewSigner(w *Wallet, ks KeystoreBackend) *Signer {
	return &Signer{wallet: w, ks: ks}
}

// Address returns the wallet's address.
func (s *Signer) Address() common.Address {
	return s.wallet.Addr()
}

// Authorize signs "w3mint:<action>:<nonce>:<args...>" with a fresh nonce.
func (s *Signer) Authorize(action string, args ...string) (*Authorization, error) {
	key, err := s.key()
	if err != nil {
		return nil, err
	}
	msg := []byte(strings.Join(append([]string{authPrefix, action, uuid.NewString()}, args...), ":"))
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return nil, fmt.Errorf("signing %s: %w", action, err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return &Authorization{Claimed: s.Address(), Message: msg, Signature: sig}, nil
}

func (s *Signer) key() (*ecdsa.PrivateKey, error) {
	if s.wallet.Type != TypeSigning {
		return nil, fmt.Errorf("wallet %q is watch-only and cannot sign", s.wallet.Name)
	}
	hexKey, err := s.ks.Retrieve(s.wallet.KeyRef)
	if err != nil {
		return nil, fmt.Errorf("retrieving key for %q: %w", s.wallet.Name, err)
	}
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parsing key for %q: %w", s.wallet.Name, err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != s.Address() {
		return nil, fmt.Errorf("key for %q does not belong to %s", s.wallet.Name, s.Address().Hex())
	}
	return key, nil
}
