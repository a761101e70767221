package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"reboot-miniapp/internal/models"
	"reboot-miniapp/internal/util"
)

var (
	ErrNoHash       = errors.New("init data: hash missing")
	ErrBadSignature = errors.New("init data: signature mismatch")
	ErrExpired      = errors.New("init data: auth_date missing or too old")
)

// InitData is the parsed host launch payload.
type InitData struct {
	QueryID      string
	User         *models.Identity
	ChatType     string
	ChatInstance string
	StartParam   string
	AuthDate     time.Time
	Hash         string
}

func ParseInitData(raw string) (InitData, error) {
	var d InitData
	params, err := url.ParseQuery(raw)
	if err != nil {
		return d, fmt.Errorf("init data: %w", err)
	}
	d.QueryID = params.Get("query_id")
	d.ChatType = params.Get("chat_type")
	d.ChatInstance = params.Get("chat_instance")
	d.StartParam = params.Get("start_param")
	d.Hash = params.Get("hash")
	if s := params.Get("auth_date"); s != "" {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			d.AuthDate = time.Unix(sec, 0).UTC()
		}
	}
	if u := params.Get("user"); u != "" {
		var id models.Identity
		if err := json.Unmarshal([]byte(u), &id); err != nil {
			return d, fmt.Errorf("init data user: %w", err)
		}
		if id.ID != 0 {
			d.User = &id
		}
	}
	return d, nil
}

// VerifyInitData checks the payload hash with the WebAppData scheme:
// secret = HMAC("WebAppData", token), hash = HMAC(secret, data-check-string).
// A positive maxAge also rejects payloads whose auth_date is older than that.
func VerifyInitData(raw, botToken string, maxAge time.Duration) error {
	params, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("init data: %w", err)
	}
	hash := params.Get("hash")
	if hash == "" {
		return ErrNoHash
	}
	if !util.EqualHex(hash, signature(params, botToken)) {
		return ErrBadSignature
	}
	if maxAge > 0 {
		sec, err := strconv.ParseInt(params.Get("auth_date"), 10, 64)
		if err != nil || time.Since(time.Unix(sec, 0)) > maxAge {
			return ErrExpired
		}
	}
	return nil
}

// SignInitData builds a signed payload from params, for local development
// and tests. Telegram signs real payloads itself.
func SignInitData(params url.Values, botToken string) string {
	out := url.Values{}
	for k, v := range params {
		if k != "hash" {
			out[k] = v
		}
	}
	out.Set("hash", signature(out, botToken))
	return out.Encode()
}

func signature(params url.Values, botToken string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params.Get(k))
	}
	secret := util.HMACSHA256([]byte("WebAppData"), botToken)
	return util.HMACSHA256Hex(secret, strings.Join(parts, "\n"))
}
