package config

import "os"

type S3 struct {
	AccessKey  string
	SecretKey  string
	Region     string
	BucketName string
}

type Config struct {
	FacebookAPIURL string
	FBAppID        string
	FBAppSecret    string
	IGUserID       string
	OpenAIKey      string
	GeminiKey      string
	AIProvider     string
	PromptsFile    string
	RedisURI       string
	DataDir        string
	BaseURL        string
	FrontendURL    string
	S3             S3
}

func LoadConfig() *Config {
	return &Config{
		FacebookAPIURL: getEnv("FACEBOOK_API_URL", "https://graph.facebook.com/v19.0"),
		FBAppID:        getEnv("FB_APP_ID", ""),
		FBAppSecret:    getEnv("FB_APP_SECRET", ""),
		IGUserID:       getEnv("IG_USER_ID", ""),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiKey:      getEnv("GEMINI_API_KEY", ""),
		AIProvider:     getEnv("AI_PROVIDER", "openai"),
		PromptsFile:    getEnv("PROMPTS_FILE", "prompts.yaml"),
		RedisURI:       getEnv("REDIS_URI", ""),
		DataDir:        getEnv("DATA_DIR", "data"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:3000"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		S3: S3{
			AccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Region:     getEnv("AWS_S3_REGION", "eu-west-3"),
			BucketName: getEnv("AWS_S3_BUCKET", "instagrid"),
		},
	}
}

// UseS3 reports whether S3 credentials are configured. Without them the asset
// store and the ephemeral publish uploads fall back to the local filesystem.
func (c *Config) UseS3() bool {
	return c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
