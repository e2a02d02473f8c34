package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/userproof/config"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/userproof/model"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/userproof/userproof"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

func main() {
	configFile := flag.String("f", "./config/config.json", "the config file")
	flag.Parse()

	var cfg config.Config
	conf.MustLoad(*configFile, &cfg)
	ctx := context.Background()

	leaves, err := utils.ReadLiabilityLeaves(cfg.UserDataFile, cfg.BalanceDecimals)
	if err != nil {
		logx.Must(fmt.Errorf("read liability export: %w", err))
	}
	tree, err := merkle.BuildLiabilityTree(leaves)
	if err != nil {
		logx.Must(fmt.Errorf("build liability tree: %w", err))
	}

	var ps *prover.InclusionProvingSystem
	if cfg.EnableZkProof {
		ps, err = loadOrSetupInclusion(cfg.ZkKeyName, tree.Depth())
		if err != nil {
			logx.Must(fmt.Errorf("inclusion proving system: %w", err))
		}
	}

	dsn, err := utils.GetMysqlSource(ctx, cfg.MysqlDataSource, cfg.MysqlSecretId)
	if err != nil {
		logx.Must(fmt.Errorf("resolve mysql source: %w", err))
	}
	db, err := gorm.Open(mysql.Open(dsn))
	if err != nil {
		logx.Must(fmt.Errorf("open mysql: %w", err))
	}
	proofModel := model.NewUserProofModel(db)
	if err := proofModel.CreateTable(ctx); err != nil {
		logx.Must(fmt.Errorf("migrate user_proofs: %w", err))
	}

	gen := userproof.NewGenerator(ps, proofModel)
	if err := gen.GenerateAll(ctx, tree, cfg.Timestamp); err != nil {
		logx.Must(fmt.Errorf("generate user proofs: %w", err))
	}
}

func loadOrSetupInclusion(keyName string, depth int) (*prover.InclusionProvingSystem, error) {
	pkPath := keyName + ".inclusion.pk"
	vkPath := keyName + ".inclusion.vk"
	ccsPath := keyName + ".inclusion.ccs"

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
		return &prover.InclusionProvingSystem{
			Depth:            depth,
			ProvingKey:       pk,
			VerifyingKey:     vk,
			ConstraintSystem: ccs,
		}, nil
	}

	logx.Infof("no inclusion keys at %s, running setup for depth %d", pkPath, depth)
	ps, err := prover.SetupInclusion(depth)
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
