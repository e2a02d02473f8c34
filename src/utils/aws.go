package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const dbPasswordPlaceholder = "<password>"

// GetMysqlSource resolves the DSN used by gorm. When secretId is set, the
// password is fetched from AWS Secrets Manager (secret JSON key "password")
// and substituted for the <password> placeholder in dataSource, so no
// credential lives in the on-disk config.
func GetMysqlSource(ctx context.Context, dataSource, secretId string) (string, error) {
	if secretId == "" {
		return dataSource, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	svc := secretsmanager.NewFromConfig(cfg)
	out, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretId})
	if err != nil {
		return "", err
	}
	var secret struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return "", err
	}
	if secret.Password == "" {
		return "", fmt.Errorf("secret %s carries no password", secretId)
	}
	return strings.Replace(dataSource, dbPasswordPlaceholder, secret.Password, 1), nil
}
