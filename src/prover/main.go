package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/ledger"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/config"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/verifier"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/witness/witness"
)

func main() {
	configFile := flag.String("f", "./config/config.json", "the config file")
	flag.Parse()

	var cfg config.Config
	conf.MustLoad(*configFile, &cfg)
	ctx := context.Background()

	timestamp := cfg.Timestamp
	if timestamp == 0 {
		timestamp = uint64(time.Now().Unix())
	}

	snapshot, err := witness.BuildSnapshotFromCsv(cfg.UserDataFile, cfg.BalanceDecimals, cfg.Assets, timestamp)
	if err != nil {
		logx.Must(fmt.Errorf("build snapshot: %w", err))
	}

	ps, err := loadOrSetupSolvency(cfg.ZkKeyName, snapshot.Tree.LeafCount(), cfg.AssetCount)
	if err != nil {
		logx.Must(fmt.Errorf("proving system: %w", err))
	}

	proofBlob, err := ps.ProveSolvency(snapshot.Tree, snapshot.Assets, snapshot.Timestamp)
	if err != nil {
		logx.Must(fmt.Errorf("prove solvency: %w", err))
	}
	logx.Infof("solvency proof generated, %d bytes", len(proofBlob))

	recordModel, locker := openLedgerBackends(ctx, &cfg)
	led := ledger.NewLedger(
		recordModel,
		verifier.NewSolvencyVerifier(ps.VerifyingKey, cfg.AssetCount),
		verifier.NewWitnessInclusionVerifier(),
		locker,
	)
	if err := led.Submit(ctx, snapshot.Timestamp, snapshot.MstRoot(), snapshot.Assets, proofBlob); err != nil {
		logx.Must(fmt.Errorf("submit solvency record: %w", err))
	}
	logx.Infof("anchored snapshot %d with root %s", snapshot.Timestamp, snapshot.MstRoot())
}

func loadOrSetupSolvency(keyName string, leafCount, assetCount int) (*prover.SolvencyProvingSystem, error) {
	pkPath := keyName + ".solvency.pk"
	vkPath := keyName + ".solvency.vk"
	ccsPath := keyName + ".solvency.ccs"

	if _, err := os.Stat(pkPath); err == nil {
		pk, err := prover.LoadProvingKey(pkPath)
		if err != nil {
			return nil, err
		}
		vk, err := prover.LoadVerifyingKey(vkPath)
		if err != nil {
			return nil, err
		}
		ccs, err := prover.LoadConstraintSystem(ccsPath)
		if err != nil {
			return nil, err
		}
		return &prover.SolvencyProvingSystem{
			LeafCount:        leafCount,
			AssetCount:       assetCount,
			ProvingKey:       pk,
			VerifyingKey:     vk,
			ConstraintSystem: ccs,
		}, nil
	}

	logx.Infof("no proving keys at %s, running setup for %d leaves x %d assets", pkPath, leafCount, assetCount)
	ps, err := prover.SetupSolvency(leafCount, assetCount)
	if err != nil {
		return nil, err
	}
	if err := prover.WriteProvingKey(ps.ProvingKey, pkPath); err != nil {
		return nil, err
	}
	if err := prover.WriteVerifyingKey(ps.VerifyingKey, vkPath); err != nil {
		return nil, err
	}
	if err := prover.WriteConstraintSystem(ps.ConstraintSystem, ccsPath); err != nil {
		return nil, err
	}
	return ps, nil
}

func openLedgerBackends(ctx context.Context, cfg *config.Config) (ledger.RecordModel, ledger.Locker) {
	var recordModel ledger.RecordModel
	if cfg.MysqlDataSource != "" {
		dsn, err := utils.GetMysqlSource(ctx, cfg.MysqlDataSource, cfg.MysqlSecretId)
		if err != nil {
			logx.Must(fmt.Errorf("resolve mysql source: %w", err))
		}
		db, err := gorm.Open(mysql.Open(dsn))
		if err != nil {
			logx.Must(fmt.Errorf("open mysql: %w", err))
		}
		recordModel = ledger.NewRecordModel(db)
		if err := recordModel.CreateTable(ctx); err != nil {
			logx.Must(fmt.Errorf("migrate solvency_records: %w", err))
		}
	} else {
		logx.Info("no mysql configured, anchoring to in-memory ledger")
		recordModel = ledger.NewMemoryRecordModel()
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
	return recordModel, locker
}
