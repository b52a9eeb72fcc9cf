package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/pkg/database"
)

type item struct {
	name, category, price string
	stock                 int
	featured              bool
	description           string
}

var catalog = []item{
	{"Bitcoin Hoodie", "Hoodies", "89.99", 50, true, "Organic cotton hoodie with the Bitcoin logo and a fleece lining."},
	{"Ethereum Classic Tee", "T-Shirts", "39.99", 100, true, "Minimalist Ethereum logo t-shirt in Pima cotton."},
	{"Crypto Dad Hat", "Hats", "34.99", 75, false, "Vintage dad hat with embroidered crypto symbols."},
	{"HODL Coffee Mug", "Mugs", "24.99", 200, true, "12oz ceramic mug with the HODL motto."},
	{"Solana Snapback", "Hats", "44.99", 60, false, "Snapback cap with the Solana gradient logo."},
	{"DeFi Kingdom Hoodie", "Hoodies", "99.99", 30, false, "Heavyweight hoodie for DeFi regulars."},
	{"NFT Creator Tee", "T-Shirts", "44.99", 85, false, "Graphic tee for on-chain artists."},
	{"To The Moon Sticker Pack", "Stickers", "14.99", 500, false, "Vinyl sticker pack, laptop ready."},
	{"Blockchain Dev Mug", "Mugs", "29.99", 150, false, "Mug for long nights of smart contract audits."},
	{"Crypto Whale Hoodie", "Hoodies", "109.99", 25, true, "Oversized hoodie with whale embroidery."},
	{"Web3 Laptop Sleeve", "Accessories", "49.99", 80, false, "Padded 14-inch laptop sleeve."},
	{"Diamond Hands Tee", "T-Shirts", "34.99", 120, false, "Diamond hands print on soft cotton."},
}

func main() {
	force := flag.Bool("force", false, "seed even when products already exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		fail(err)
	}
	defer database.Close(db)

	if err := repository.Migrate(db); err != nil {
		fail(err)
	}
	store := repository.NewStore(db)
	ctx := context.Background()

	existing, err := store.Products.List(ctx, 0, 1)
	if err != nil {
		fail(err)
	}
	if len(existing) > 0 && !*force {
		fmt.Println("products already present, skipping (use -force to add anyway)")
		return
	}

	err = store.WithTx(ctx, func(tx *repository.Store) error {
		for _, it := range catalog {
			p := &model.Product{
				ID:          uuid.New().String(),
				Name:        it.name,
				Description: it.description,
				Category:    it.category,
				Price:       decimal.RequireFromString(it.price),
				Stock:       it.stock,
				Featured:    it.featured,
			}
			if err := tx.Products.Create(ctx, p); err != nil {
				return fmt.Errorf("create %s: %w", it.name, err)
			}
		}
		return nil
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("seeded %d products\n", len(catalog))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "seed:", err)
	os.Exit(1)
}
