package config

const EnvPrefix = "KITEA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv  = "KITEA_APP_ENV"
	EnvPort    = "KITEA_APP_PORT"
	EnvSiteURL = "KITEA_SITE_URL"

	EnvDBDSN  = "KITEA_DB_DSN"
	EnvDBHost = "KITEA_DB_HOST"
	EnvDBUser = "KITEA_DB_USER"
	EnvDBName = "KITEA_DB_NAME"

	EnvRedisURL = "KITEA_REDIS_URL"

	EnvJWTSecret = "KITEA_IDENTITY_JWT_SECRET"
	EnvJWTIssuer = "KITEA_IDENTITY_ISSUER"

	EnvGCPProjectID     = "KITEA_GCP_PROJECT_ID"
	EnvPubSubMintTopic  = "KITEA_PUBSUB_MINT_TOPIC"
	EnvPubSubMintSub    = "KITEA_PUBSUB_MINT_SUBSCRIPTION"
	EnvPubSubOrderTopic = "KITEA_PUBSUB_ORDERS_TOPIC"

	EnvStripeAPIKey = "KITEA_STRIPE_API_KEY"
	EnvStripeSecret = "KITEA_STRIPE_WEBHOOK_SECRET"

	EnvChainRPCURL        = "KITEA_CHAIN_RPC_URL"
	EnvContractAddress    = "KITEA_NFT_CONTRACT_ADDRESS"
	EnvDeployerPrivateKey = "KITEA_DEPLOYER_PRIVATE_KEY"
	EnvFounderTokenID     = "KITEA_FOUNDER_TOKEN_ID"

	EnvWalletSalt     = "KITEA_WALLET_SALT"
	EnvInternalAPIKey = "KITEA_INTERNAL_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
