package pubsub

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 客户端令牌需要的最小权限。
var defaultRoles = []string{"webpubsub.joinLeaveGroup", "webpubsub.sendToGroup"}

// TokenOptions 描述客户端访问令牌。
type TokenOptions struct {
	Endpoint  string
	AccessKey string
	Hub       string
	UserID    string
	Groups    []string
	Roles     []string
	TTL       time.Duration
	Now       func() time.Time
}

// ClientAccessURL 用访问密钥签发 HS256 令牌并拼出 WebSocket 连接地址。
func ClientAccessURL(opts TokenOptions) (string, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.Hub == "" {
		return "", fmt.Errorf("endpoint, access key and hub are required")
	}

	base, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	hubPath := "/client/hubs/" + url.PathEscape(strings.ToLower(opts.Hub))
	audience := fmt.Sprintf("%s://%s%s", httpScheme(base.Scheme), base.Host, hubPath)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	roles := opts.Roles
	if len(roles) == 0 {
		roles = defaultRoles
	}

	issuedAt := now()
	claims := jwt.MapClaims{
		"aud":  audience,
		"iat":  issuedAt.Unix(),
		"exp":  issuedAt.Add(ttl).Unix(),
		"role": roles,
	}
	if opts.UserID != "" {
		claims["sub"] = opts.UserID
	}
	if len(opts.Groups) > 0 {
		claims["webpubsub.group"] = opts.Groups
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.AccessKey))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	wsURL := url.URL{
		Scheme:   wsScheme(base.Scheme),
		Host:     base.Host,
		Path:     hubPath,
		RawQuery: url.Values{"access_token": {token}}.Encode(),
	}
	return wsURL.String(), nil
}

func wsScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return "ws"
	default:
		return "wss"
	}
}

func httpScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return "http"
	default:
		return "https"
	}
}
