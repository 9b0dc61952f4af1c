// internal/settlement/http.go
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const tokenTTL = time.Minute

// RelayClaims authenticate one call to the settlement relay.
type RelayClaims struct {
	Method string `json:"method"`
	jwt.RegisteredClaims
}

// HTTPContract talks to a relay that submits transactions to the escrow
// contract for sender. Each request carries a short-lived HS256 token.
type HTTPContract struct {
	BaseURL    string
	HTTPClient *http.Client

	secret []byte
	sender string
	now    func() time.Time
}

func NewHTTPContract(baseURL, secret, sender string) (*HTTPContract, error) {
	addr, err := NormalizeAddress(sender)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: settlement secret is empty", ErrRelay)
	}
	return &HTTPContract{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		secret:     []byte(secret),
		sender:     addr,
		now:        time.Now,
	}, nil
}

type tournamentWire struct {
	TournamentID uint64 `json:"tournamentId"`
	Participant1 string `json:"participant1"`
	Participant2 string `json:"participant2"`
	Token1       string `json:"token1"`
	Token2       string `json:"token2"`
	Winner       string `json:"winner"`
	Amount1      string `json:"amount1"`
	Amount2      string `json:"amount2"`
	IsCompleted  bool   `json:"isCompleted"`
	Timestamp    int64  `json:"timestamp"`
}

type escrowWire struct {
	Participant string `json:"participant"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	IsDeposited bool   `json:"isDeposited"`
	IsWithdrawn bool   `json:"isWithdrawn"`
}

type txResponse struct {
	TxHash string `json:"txHash"`
}

func (c *HTTPContract) CreateTournament(ctx context.Context, participant1, participant2 string) (Created, error) {
	p1, err := NormalizeAddress(participant1)
	if err != nil {
		return Created{}, err
	}
	p2, err := NormalizeAddress(participant2)
	if err != nil {
		return Created{}, err
	}
	id := newTournamentID()
	var out txResponse
	err = c.call(ctx, "createTournament", map[string]interface{}{
		"tournamentId": id,
		"participant1": p1,
		"participant2": p2,
	}, &out)
	if err != nil {
		return Created{}, err
	}
	return Created{TournamentID: id, TxHash: out.TxHash}, nil
}

// DepositStake escrows amount of the native currency; the relay receives it in wei.
func (c *HTTPContract) DepositStake(ctx context.Context, tournamentID uint64, amount decimal.Decimal) (Receipt, error) {
	wei, err := ToWei(amount)
	if err != nil {
		return Receipt{}, err
	}
	var out txResponse
	err = c.call(ctx, "depositEscrow", map[string]interface{}{
		"tournamentId": tournamentID,
		"token":        ZeroAddress,
		"amount":       "0",
		"value":        wei.String(),
	}, &out)
	return Receipt{TxHash: out.TxHash}, err
}

func (c *HTTPContract) CheckDeposit(ctx context.Context, tournamentID uint64, address string) (Escrow, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return Escrow{}, err
	}
	var out escrowWire
	if err := c.call(ctx, "getEscrow", map[string]interface{}{"tournamentId": tournamentID, "participant": addr}, &out); err != nil {
		return Escrow{}, err
	}
	amount, err := parseWei(out.Amount)
	if err != nil {
		return Escrow{}, err
	}
	return Escrow{
		Participant: out.Participant,
		Token:       out.Token,
		Amount:      amount,
		IsDeposited: out.IsDeposited,
		IsWithdrawn: out.IsWithdrawn,
	}, nil
}

func (c *HTTPContract) AnnounceWinner(ctx context.Context, tournamentID uint64, winner string) (Receipt, error) {
	addr, err := NormalizeAddress(winner)
	if err != nil {
		return Receipt{}, err
	}
	var out txResponse
	err = c.call(ctx, "announceWinner", map[string]interface{}{"tournamentId": tournamentID, "winner": addr}, &out)
	return Receipt{TxHash: out.TxHash}, err
}

func (c *HTTPContract) GetTournament(ctx context.Context, tournamentID uint64) (Tournament, error) {
	var out tournamentWire
	if err := c.call(ctx, "getTournament", map[string]interface{}{"tournamentId": tournamentID}, &out); err != nil {
		return Tournament{}, err
	}
	a1, err := parseWei(out.Amount1)
	if err != nil {
		return Tournament{}, err
	}
	a2, err := parseWei(out.Amount2)
	if err != nil {
		return Tournament{}, err
	}
	return Tournament{
		ID:           out.TournamentID,
		Participant1: out.Participant1,
		Participant2: out.Participant2,
		Token1:       out.Token1,
		Token2:       out.Token2,
		Winner:       out.Winner,
		Amount1:      a1,
		Amount2:      a2,
		IsCompleted:  out.IsCompleted,
		Timestamp:    time.Unix(out.Timestamp, 0),
	}, nil
}

func (c *HTTPContract) BothDeposited(ctx context.Context, tournamentID uint64) (bool, error) {
	var out struct {
		Deposited bool `json:"deposited"`
	}
	if err := c.call(ctx, "bothParticipantsDeposited", map[string]interface{}{"tournamentId": tournamentID}, &out); err != nil {
		return false, err
	}
	return out.Deposited, nil
}

func (c *HTTPContract) EmergencyWithdraw(ctx context.Context, tournamentID uint64) (Receipt, error) {
	var out txResponse
	err := c.call(ctx, "emergencyWithdraw", map[string]interface{}{"tournamentId": tournamentID}, &out)
	return Receipt{TxHash: out.TxHash}, err
}

func (c *HTTPContract) token(method string) (string, error) {
	now := c.now()
	claims := RelayClaims{
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.sender,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// call POSTs params to {BaseURL}/{method} and decodes the JSON reply into out.
func (c *HTTPContract) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	tok, err := c.token(method)
	if err != nil {
		return fmt.Errorf("sign %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRelay, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("%w: %s: status %d: %s", ErrRelay, method, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrRelay, method, err)
	}
	return nil
}

func parseWei(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: bad wei amount %q", ErrRelay, s)
	}
	return FromWei(wei), nil
}
