package prover

import (
	"bytes"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// MarshalProof encodes a Groth16 proof into its raw byte form. Proof blobs
// are opaque to every layer above this one.
func MarshalProof(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteRawTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalProof decodes a raw proof blob.
func UnmarshalProof(data []byte) (groth16.Proof, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty proof blob", utils.ErrValidation)
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}
	return proof, nil
}

func WriteProvingKey(pk groth16.ProvingKey, path string) error {
	return writeFile(path, func(f *os.File) error {
		_, err := pk.WriteTo(f)
		return err
	})
}

func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(f); err != nil {
		return nil, err
	}
	return pk, nil
}

func WriteVerifyingKey(vk groth16.VerifyingKey, path string) error {
	return writeFile(path, func(f *os.File) error {
		_, err := vk.WriteTo(f)
		return err
	})
}

func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, err
	}
	return vk, nil
}

func WriteConstraintSystem(ccs constraint.ConstraintSystem, path string) error {
	return writeFile(path, func(f *os.File) error {
		_, err := ccs.WriteTo(f)
		return err
	})
}

func LoadConstraintSystem(path string) (constraint.ConstraintSystem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(f); err != nil {
		return nil, err
	}
	return ccs, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
