package http

import (
	"github.com/asaancar/identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/asaancar/identity-api/internal/infrastructure/jwt"
	redisstore "github.com/asaancar/identity-api/internal/infrastructure/redis"
	s3infra "github.com/asaancar/identity-api/internal/infrastructure/s3"
	"github.com/asaancar/identity-api/internal/infrastructure/smtp"
	"github.com/asaancar/identity-api/internal/infrastructure/sns"
	"github.com/asaancar/identity-api/internal/infrastructure/verify"
)

// Deps holds all infrastructure dependencies for the router. JWTProvider,
// SMSSender and Verifier may be nil when unconfigured; the affected endpoints
// degrade (auth routes reject, SMS flows report a configuration error).
type Deps struct {
	UserRepo      *dynamo.UserRepo
	SessionRepo   *dynamo.SessionRepo
	ChallengeRepo *dynamo.ChallengeRepo
	DeviceRepo    *dynamo.DeviceRepo
	FileRepo      *dynamo.FileRepo
	SignupStore   *redisstore.SignupStore
	S3Store       *s3infra.Store
	Mailer        smtp.Mailer
	SMSSender     sns.SMSSender
	Verifier      verify.Provider
	JWTProvider   *jwtinfra.Provider
}
