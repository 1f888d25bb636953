package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrInvalidToken is returned for a token that is malformed, forged,
	// expired, or names an unknown user.
	ErrInvalidToken = errors.New("could not validate credentials")
)

// User is an account of the demo login.
type User struct {
	Username string
	Password string
	Color    string
}

// DemoUsers is the fixed account table used when none is configured.
var DemoUsers = []User{
	{Username: "user1", Password: "password1", Color: "red"},
	{Username: "user2", Password: "password2", Color: "blue"},
	{Username: "user3", Password: "password3", Color: "green"},
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	Color       string `json:"color"`
}

// Service authenticates demo users and issues HS256 bearer tokens.
type Service struct {
	opts  *Options
	users map[string]User
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	users := make(map[string]User, len(o.users))
	for _, u := range o.users {
		users[u.Username] = u
	}
	return &Service{opts: o, users: users}
}

// Authenticate checks username and password against the user table.
func (s *Service) Authenticate(username, password string) (User, error) {
	u, ok := s.users[username]
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates the user and issues a token for them.
func (s *Service) Login(username, password string) (Token, error) {
	u, err := s.Authenticate(username, password)
	if err != nil {
		return Token{}, err
	}
	signed, err := s.IssueToken(u)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "bearer", Username: u.Username, Color: u.Color}, nil
}

// IssueToken signs a token whose subject is u.Username.
func (s *Service) IssueToken(u User) (string, error) {
	now := s.opts.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.secret)
	if err != nil {
		return "", fmt.Errorf("sign token for %q: %w", u.Username, err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns the user it was issued to.
func (s *Service) Verify(token string) (User, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return s.opts.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	// Expiry is checked against the service clock rather than time.Now.
	if !claims.VerifyExpiresAt(s.opts.now(), true) {
		return User{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	u, ok := s.users[claims.Subject]
	if !ok {
		return User{}, fmt.Errorf("%w: unknown user %q", ErrInvalidToken, claims.Subject)
	}
	return u, nil
}
