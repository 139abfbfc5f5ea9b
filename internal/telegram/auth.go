package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxInitDataAge is how long a signed init data payload stays valid.
const MaxInitDataAge = 24 * time.Hour

var ErrUnauthorized = errors.New("UNAUTHORIZED: Init data rejected")

// Identity is the authenticated Telegram user embedded in init data.
type Identity struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// DisplayName picks the best human-readable name the payload carries.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name != "" {
		return name
	}
	if i.Username != "" {
		return i.Username
	}
	return strconv.FormatInt(i.ID, 10)
}

// Verify checks a mini-app init data payload against the bot token and
// returns the user it carries. The check is the one Telegram documents: an
// HMAC-SHA256 over the sorted key=value pairs, keyed with
// HMAC-SHA256("WebAppData", botToken), plus an auth_date freshness bound.
// now is injected so tests can pin the clock.
func Verify(initData, botToken string, maxAge time.Duration, now time.Time) (Identity, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed init data", ErrUnauthorized)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return Identity{}, fmt.Errorf("%w: missing hash", ErrUnauthorized)
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	want := hex.EncodeToString(hmacSHA256(secret, []byte(checkString)))
	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return Identity{}, fmt.Errorf("%w: signature mismatch", ErrUnauthorized)
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: missing auth_date", ErrUnauthorized)
	}
	if now.Sub(time.Unix(authDate, 0)) > maxAge {
		return Identity{}, fmt.Errorf("%w: init data expired", ErrUnauthorized)
	}

	var identity Identity
	if err := json.Unmarshal([]byte(values.Get("user")), &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: unreadable user field", ErrUnauthorized)
	}
	if identity.ID == 0 {
		return Identity{}, fmt.Errorf("%w: user has no id", ErrUnauthorized)
	}

	return identity, nil
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
