package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/config"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/verifier"
)

// Standalone verification for third parties: checks a published solvency
// record, or a single user's inclusion proof file, against the exchange's
// verifying keys. Exits non-zero on any failure, invalid proofs included.
func main() {
	configFile := flag.String("f", "./config/config.json", "the config file")
	recordFile := flag.String("record", "", "solvency record json to verify")
	userFile := flag.String("user", "", "user inclusion proof json to verify")
	flag.Parse()

	var cfg config.Config
	conf.MustLoad(*configFile, &cfg)

	switch {
	case *recordFile != "":
		logx.Must(verifyRecord(&cfg, *recordFile))
	case *userFile != "":
		logx.Must(verifyUserProof(&cfg, *userFile))
	default:
		logx.Must(errors.New("nothing to verify: pass -record or -user"))
	}
}

func verifyRecord(cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	var record utils.SolvencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}
	vk, err := prover.LoadVerifyingKey(cfg.ZkKeyName + ".solvency.vk")
	if err != nil {
		return fmt.Errorf("load solvency verifying key: %w", err)
	}
	v := verifier.NewSolvencyVerifier(vk, cfg.AssetCount)
	if err := v.VerifySolvency(record.MstRoot, record.Assets, record.Timestamp, record.Proof); err != nil {
		return fmt.Errorf("solvency proof invalid: %w", err)
	}
	logx.Infof("solvency proof valid: timestamp %d, root %s, %d assets",
		record.Timestamp, record.MstRoot, len(record.Assets))
	return nil
}

func verifyUserProof(cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read user proof: %w", err)
	}
	var proofData utils.InclusionProofData
	if err := json.Unmarshal(data, &proofData); err != nil {
		return fmt.Errorf("parse user proof: %w", err)
	}

	var valid bool
	if proofData.ZkProof != "" {
		vk, err := prover.LoadVerifyingKey(cfg.ZkKeyName + ".inclusion.vk")
		if err != nil {
			return fmt.Errorf("load inclusion verifying key: %w", err)
		}
		blob, err := proofData.ZkProofBytes()
		if err != nil {
			return fmt.Errorf("decode zk proof: %w", err)
		}
		valid, err = verifier.NewInclusionVerifier(vk).VerifyInclusion(proofData.Root, blob)
		if err != nil {
			return fmt.Errorf("verify inclusion: %w", err)
		}
	} else {
		valid, err = verifier.NewWitnessInclusionVerifier().VerifyInclusion(proofData.Root, data)
		if err != nil {
			return fmt.Errorf("verify inclusion: %w", err)
		}
	}

	if !valid {
		return fmt.Errorf("%w: inclusion proof invalid for root %s", utils.ErrProofVerification, proofData.Root)
	}
	logx.Infof("inclusion proof valid: balance %d under root %s", proofData.Balance, proofData.Root)
	return nil
}
