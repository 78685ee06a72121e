package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/payitonchain/paygate/internal/config"
	"github.com/payitonchain/paygate/internal/intent"
	"github.com/payitonchain/paygate/internal/logger"
	"github.com/payitonchain/paygate/internal/matcher"
	"github.com/payitonchain/paygate/internal/merchant"
	"github.com/payitonchain/paygate/internal/metrics"
	"github.com/payitonchain/paygate/internal/queue"
	"github.com/payitonchain/paygate/internal/redisconn"
	"github.com/payitonchain/paygate/internal/token"
	"github.com/payitonchain/paygate/internal/webhook"
	"github.com/payitonchain/paygate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisconn.Module,
		metrics.Module,

		merchant.Module,
		intent.Module,
		token.Module,
		queue.Module,

		matcher.Module,
		webhook.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
