package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"example.com/planbridge/internal/api/handlers"
	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

// tokenClaims is the payload of a planner-issued access token. The
// token is signed with the company's webtoken key and carries the
// user's credentials, so the signature alone is not enough: the
// password claim is still checked against the users table.
type tokenClaims struct {
	User     string `json:"user"`
	Password string `json:"password"`
	jwt.RegisteredClaims
}

// Authenticate accepts either HTTP basic credentials checked against
// the users table, or a bearer token signed with the webtoken key of
// the company named in the request.
func Authenticate(st store.Store, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, company, err := authenticate(c, st)
		if err != nil {
			log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("authentication failed")
			c.Header("WWW-Authenticate", `Basic realm="planbridge"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(handlers.UserContextKey, user)
		if company != nil {
			c.Set(handlers.CompanyContextKey, company)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, st store.Store) (*models.User, *models.Company, error) {
	ctx := c.Request.Context()

	if login, password, ok := c.Request.BasicAuth(); ok {
		user, err := st.UserByLogin(ctx, login)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unknown user")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, nil, errors.New("invalid credentials")
		}
		return user, nil, nil
	}

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil, errors.New("no credentials supplied")
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	companyName := c.Query("company")
	if companyName == "" {
		companyName = c.PostForm("company")
	}
	company, err := st.CompanyByName(ctx, companyName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unknown company %q", companyName)
	}
	if company.WebtokenKey == "" {
		return nil, nil, errors.New("company has no webtoken key configured")
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(company.WebtokenKey), nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid token")
	}
	if !token.Valid || claims.User == "" {
		return nil, nil, errors.New("invalid token")
	}
	user, err := st.UserByLogin(ctx, claims.User)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unknown token user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(claims.Password)); err != nil {
		return nil, nil, errors.New("invalid token credentials")
	}
	return user, company, nil
}

