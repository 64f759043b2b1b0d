package global

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"IMGateway/logger"
	"IMGateway/tools/ids"

	"github.com/mitchellh/mapstructure"
)

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaConf struct {
	Brokers         []string `mapstructure:"brokers"`
	PushTopic       string   `mapstructure:"push_topic"`
	MembershipTopic string   `mapstructure:"membership_topic"`
	GroupID         string   `mapstructure:"group_id"`
}

type AppConfig struct {
	NodeID    int64  `mapstructure:"node_id"`
	GatewayID string `mapstructure:"gateway_id"`
	Port      int    `mapstructure:"port"`
	Debug     bool   `mapstructure:"debug"`

	PingIntervalSec int `mapstructure:"ping_interval_sec"`
	HeartbeatTTLSec int `mapstructure:"heartbeat_ttl_sec"`
	TypingTTLSec    int `mapstructure:"typing_ttl_sec"`

	// EditWindowSec bounds edit_message age. Deployments have run with
	// both 300 and 900; there is no single right value, so it stays
	// configurable.
	EditWindowSec int `mapstructure:"edit_window_sec"`

	JWTSecret string `mapstructure:"jwt_secret"`

	Redis RedisConf `mapstructure:"redis"`
	Mongo MongoConf `mapstructure:"mongo"`
	Kafka KafkaConf `mapstructure:"kafka"`
}

var Global = AppConfig{
	NodeID:          100,
	GatewayID:       "msg_gw-1",
	Port:            8080,
	PingIntervalSec: 25,
	HeartbeatTTLSec: 75,
	TypingTTLSec:    10,
	EditWindowSec:   300,
	Redis:           RedisConf{Addr: "127.0.0.1:6379"},
	Mongo:           MongoConf{URI: "mongodb://127.0.0.1:27017", Database: "im_gateway"},
	Kafka: KafkaConf{
		Brokers:         []string{"127.0.0.1:9092"},
		PushTopic:       "notification_push",
		MembershipTopic: "room_membership_events",
		GroupID:         "im-gateway-consumer-1",
	},
}

// Load merges an optional JSON config file and environment overrides
// into Global, then seeds the id generator.
func Load(path string) error {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if err := mapstructure.Decode(m, &Global); err != nil {
			return err
		}
	}

	applyEnv()

	ids.SetNodeID(Global.NodeID)
	logger.Infof("config loaded gateway_id=%s port=%d", Global.GatewayID, Global.Port)
	return nil
}

func applyEnv() {
	if v := os.Getenv("GATEWAY_ID"); v != "" {
		Global.GatewayID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		Global.JWTSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		Global.Redis.Addr = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		Global.Mongo.URI = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		Global.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *AppConfig) PingInterval() time.Duration { return time.Duration(c.PingIntervalSec) * time.Second }
func (c *AppConfig) HeartbeatTTL() time.Duration { return time.Duration(c.HeartbeatTTLSec) * time.Second }
func (c *AppConfig) TypingTTL() time.Duration    { return time.Duration(c.TypingTTLSec) * time.Second }
func (c *AppConfig) EditWindow() time.Duration   { return time.Duration(c.EditWindowSec) * time.Second }

func GetJwtSecret() []byte {
	if Global.JWTSecret != "" {
		return []byte(Global.JWTSecret)
	}
	return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
}
