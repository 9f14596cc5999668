package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	mpesaTransactionType  = "CustomerPayBillOnline"
	mpesaTransactionDesc  = "Course Payment"
	mpesaTimestampLayout  = "20060102150405"
	tokenExpiryMargin     = 60 * time.Second
	defaultTokenLifetime  = 3599
	defaultPushTimeout    = 30 * time.Second
	defaultTokenTimeout   = 10 * time.Second
	mpesaAcceptedResponse = "0"
)

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	CallbackURL    string
	BaseURL        string
	HTTPTimeout    time.Duration
	TokenTimeout   time.Duration
}

type MpesaProvider struct {
	cfg         MpesaConfig
	client      *http.Client
	tokenClient *http.Client
	location    *time.Location
	now         func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMpesaProvider(cfg MpesaConfig) *MpesaProvider {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultPushTimeout
	}
	if cfg.TokenTimeout <= 0 {
		cfg.TokenTimeout = defaultTokenTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	location, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		location = time.FixedZone("EAT", 3*60*60)
	}

	return &MpesaProvider{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
		tokenClient: &http.Client{Timeout: cfg.TokenTimeout},
		location:    location,
		now:         time.Now,
	}
}

func (p *MpesaProvider) Configured() bool {
	return strings.TrimSpace(p.cfg.ConsumerKey) != "" &&
		strings.TrimSpace(p.cfg.ConsumerSecret) != "" &&
		strings.TrimSpace(p.cfg.Passkey) != "" &&
		strings.TrimSpace(p.cfg.Shortcode) != "" &&
		p.cfg.BaseURL != ""
}

func (p *MpesaProvider) RequestToken(ctx context.Context) (*Token, error) {
	if strings.TrimSpace(p.cfg.ConsumerKey) == "" || strings.TrimSpace(p.cfg.ConsumerSecret) == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.ConsumerKey, p.cfg.ConsumerSecret)

	resp, err := p.tokenClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mpesa token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mpesa token response malformed: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return nil, errors.New("mpesa token response missing access_token")
	}

	expiresIn, err := payload.ExpiresIn.Int64()
	if err != nil || expiresIn <= 0 {
		expiresIn = defaultTokenLifetime
	}

	return &Token{AccessToken: payload.AccessToken, ExpiresIn: expiresIn}, nil
}

// SubmitPushPayment asks the gateway to prompt the payer's handset. Any non-accepting answer is final.
func (p *MpesaProvider) SubmitPushPayment(ctx context.Context, phone string, amount int64, reference string) (*SubmitResult, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("mpesa access token: %w", err)
	}

	timestamp := p.now().In(p.location).Format(mpesaTimestampLayout)
	request := map[string]interface{}{
		"BusinessShortCode": p.cfg.Shortcode,
		"Password":          p.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   mpesaTransactionType,
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            p.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       p.cfg.CallbackURL,
		"AccountReference":  reference,
		"TransactionDesc":   mpesaTransactionDesc,
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ResponseCode        json.Number `json:"ResponseCode"`
		ResponseDescription string      `json:"ResponseDescription"`
		CheckoutRequestID   string      `json:"CheckoutRequestID"`
		MerchantRequestID   string      `json:"MerchantRequestID"`
		ErrorCode           string      `json:"errorCode"`
		ErrorMessage        string      `json:"errorMessage"`
	}

	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &payload) == nil && payload.ErrorMessage != "" {
			return nil, &RejectedError{Code: payload.ErrorCode, Description: payload.ErrorMessage}
		}
		return nil, fmt.Errorf("mpesa push request failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mpesa push response malformed: %w", err)
	}
	if payload.ResponseCode.String() != mpesaAcceptedResponse {
		return nil, &RejectedError{Code: payload.ResponseCode.String(), Description: payload.ResponseDescription}
	}
	if strings.TrimSpace(payload.CheckoutRequestID) == "" {
		return nil, errors.New("mpesa push response missing CheckoutRequestID")
	}

	return &SubmitResult{
		CheckoutHandle:      payload.CheckoutRequestID,
		MerchantHandle:      payload.MerchantRequestID,
		ResponseDescription: payload.ResponseDescription,
	}, nil
}

// ParseCallback extracts the outcome from an stkCallback notification body.
func (p *MpesaProvider) ParseCallback(payload []byte) (*CallbackEvent, error) {
	var envelope struct {
		Body *struct {
			StkCallback *struct {
				MerchantRequestID string      `json:"MerchantRequestID"`
				CheckoutRequestID string      `json:"CheckoutRequestID"`
				ResultCode        json.Number `json:"ResultCode"`
				ResultDesc        string      `json:"ResultDesc"`
				CallbackMetadata  *struct {
					Item []struct {
						Name  string      `json:"Name"`
						Value interface{} `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if envelope.Body == nil || envelope.Body.StkCallback == nil {
		return nil, ErrMalformedCallback
	}

	callback := envelope.Body.StkCallback
	handle := strings.TrimSpace(callback.CheckoutRequestID)
	if handle == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}
	resultCode, err := strconv.ParseInt(callback.ResultCode.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ResultCode %q", ErrMalformedCallback, callback.ResultCode.String())
	}

	event := &CallbackEvent{
		CheckoutHandle:    handle,
		MerchantHandle:    strings.TrimSpace(callback.MerchantRequestID),
		ResultCode:        resultCode,
		ResultDescription: callback.ResultDesc,
		Metadata:          map[string]string{},
	}
	if callback.CallbackMetadata != nil {
		for _, item := range callback.CallbackMetadata.Item {
			if item.Value == nil {
				continue
			}
			event.Metadata[item.Name] = metadataString(item.Value)
		}
	}

	return event, nil
}

func (p *MpesaProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	token, err := p.RequestToken(ctx)
	if err != nil {
		return "", err
	}

	p.token = token.AccessToken
	p.tokenExpiry = p.now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpiryMargin)
	return p.token, nil
}

func (p *MpesaProvider) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(p.cfg.Shortcode + p.cfg.Passkey + timestamp))
}

func metadataString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
