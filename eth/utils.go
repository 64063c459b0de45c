package eth

import (
	"fmt"

	ethtxhelper "github.com/ambridge-relay/relayer/eth/txhelper"
	"github.com/Ethernal-Tech/cardano-infrastructure/secrets"
)

// GetWalletPrivateKey loads the signing wallet for chain from the secrets manager.
func GetWalletPrivateKey(secretsManager secrets.SecretsManager, chain string) (*ethtxhelper.EthTxWallet, error) {
	keyName := fmt.Sprintf("%s%s_wallet_key", secrets.OtherKeyLocalPrefix, chain)

	pkBytes, err := secretsManager.GetSecret(keyName)
	if err != nil {
		return nil, err
	}

	return ethtxhelper.NewEthTxWallet(string(pkBytes))
}

// CreateAndSaveWalletPrivateKey loads an existing wallet or generates and persists a new one.
func CreateAndSaveWalletPrivateKey(
	secretsManager secrets.SecretsManager, chain string, forceRegenerate bool,
) (*ethtxhelper.EthTxWallet, error) {
	keyName := fmt.Sprintf("%s%s_wallet_key", secrets.OtherKeyLocalPrefix, chain)

	if secretsManager.HasSecret(keyName) {
		if !forceRegenerate {
			return GetWalletPrivateKey(secretsManager, chain)
		}

		if err := secretsManager.RemoveSecret(keyName); err != nil {
			return nil, err
		}
	}

	wallet, err := ethtxhelper.GenerateNewEthTxWallet()
	if err != nil {
		return nil, err
	}

	return wallet, wallet.Save(secretsManager, keyName)
}
