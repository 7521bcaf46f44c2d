package application

import (
	"context"
	"errors"
	"fmt"

	"localdeals/controlplane/domain"
)

// CatalogService é o caminho de leitura (e a escrita com invalidação) das lojas.
type CatalogService struct {
	Shops domain.ShopRepository
	Cache domain.ShopCache
	// Strategy é usada quando a chamada não escolhe uma.
	Strategy domain.Strategy
}

func (s CatalogService) QueryShop(ctx context.Context, id int64, strategy domain.Strategy) (domain.Shop, bool, error) {
	if strategy == "" {
		strategy = s.Strategy
	}
	return s.Cache.Get(ctx, id, strategy)
}

// UpdateShop grava no banco e depois apaga a chave do cache: a próxima leitura
// reconstrói a partir do registro atualizado. Com LogicalExpire como padrão a
// chave é regravada em vez de apagada, porque essa estratégia trata chave fria
// como ausente.
func (s CatalogService) UpdateShop(ctx context.Context, shop domain.Shop) error {
	if shop.ID <= 0 {
		return fmt.Errorf("%w: shop id is required", domain.ErrInvalidArgument)
	}
	if err := s.Shops.Update(ctx, shop); err != nil {
		return err
	}
	if s.Strategy != domain.LogicalExpire {
		return s.Cache.Invalidate(ctx, shop.ID)
	}
	ok, err := s.PreheatShop(ctx, shop.ID)
	if err != nil {
		return err
	}
	if !ok {
		// removida entre o update e a releitura
		return s.Cache.Invalidate(ctx, shop.ID)
	}
	return nil
}

// PreheatShop grava o registro com expiração lógica. A estratégia
// LogicalExpire nunca carrega sozinha uma chave fria.
func (s CatalogService) PreheatShop(ctx context.Context, id int64) (bool, error) {
	shop, err := s.Shops.LoadByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrUpstreamLoad, err)
	}
	if err := s.Cache.SetLogical(ctx, id, shop); err != nil {
		return false, err
	}
	return true, nil
}
