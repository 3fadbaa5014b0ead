package config

// EnvPrefix is empty because every field declares its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SETTLEMENT_APP_ENV"
	EnvPort     = "SETTLEMENT_APP_PORT"
	EnvLogLevel = "SETTLEMENT_LOG_LEVEL"

	EnvDBDSN  = "SETTLEMENT_DB_DSN"
	EnvDBHost = "SETTLEMENT_DB_HOST"
	EnvDBUser = "SETTLEMENT_DB_USER"
	EnvDBName = "SETTLEMENT_DB_NAME"

	EnvRedisURL = "SETTLEMENT_REDIS_URL"

	EnvJWTSecret = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer = "SETTLEMENT_JWT_ISSUER"

	EnvCurrency             = "SETTLEMENT_CURRENCY"
	EnvTaxBPS               = "SETTLEMENT_TAX_BPS"
	EnvCommissionBPS        = "SETTLEMENT_COMMISSION_BPS"
	EnvProcessingBPS        = "SETTLEMENT_PROCESSING_BPS"
	EnvProcessingFixedCents = "SETTLEMENT_PROCESSING_FIXED_CENTS"
	EnvPayoutTrigger        = "SETTLEMENT_PAYOUT_TRIGGER"

	EnvPaymentsProvider      = "SETTLEMENT_PAYMENTS_PROVIDER"
	EnvPaymentsWebhookSecret = "SETTLEMENT_PAYMENTS_WEBHOOK_SECRET"
	EnvStripeAPIKey          = "SETTLEMENT_STRIPE_API_KEY"
	EnvStripeSecret          = "SETTLEMENT_STRIPE_SECRET"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
