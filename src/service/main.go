package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/ledger"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/registry"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/service/config"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/service/server"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/verifier"
)

func main() {
	configFile := flag.String("f", "./config/config.json", "the config file")
	flag.Parse()

	var cfg config.Config
	conf.MustLoad(*configFile, &cfg)
	ctx := context.Background()

	dsn, err := utils.GetMysqlSource(ctx, cfg.MysqlDataSource, cfg.MysqlSecretId)
	if err != nil {
		logx.Must(fmt.Errorf("resolve mysql source: %w", err))
	}
	db, err := gorm.Open(mysql.Open(dsn))
	if err != nil {
		logx.Must(fmt.Errorf("open mysql: %w", err))
	}

	ownershipModel := registry.NewOwnershipModel(db)
	if err := ownershipModel.CreateTable(ctx); err != nil {
		logx.Must(fmt.Errorf("migrate address_ownership: %w", err))
	}
	recordModel := ledger.NewRecordModel(db)
	if err := recordModel.CreateTable(ctx); err != nil {
		logx.Must(fmt.Errorf("migrate solvency_records: %w", err))
	}

	vk, err := prover.LoadVerifyingKey(cfg.ZkKeyName + ".solvency.vk")
	if err != nil {
		logx.Must(fmt.Errorf("load solvency verifying key: %w", err))
	}

	var locker ledger.Locker
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = ledger.NewRedisLocker(client)
	}

	led := ledger.NewLedger(
		recordModel,
		verifier.NewSolvencyVerifier(vk, cfg.AssetCount),
		verifier.NewWitnessInclusionVerifier(),
		locker,
	)
	reg := registry.NewRegistry(ownershipModel)

	srv := server.New(reg, led, cfg.OperatorKey)
	logx.Infof("serving on %s", cfg.ListenAddr)
	if err := srv.Run(cfg.ListenAddr); err != nil {
		logx.Must(fmt.Errorf("server stopped: %w", err))
	}
}
