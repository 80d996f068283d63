package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/repository"
)

type sizeJSON struct {
	Label string `json:"label"`
	Stock int    `json:"stock"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Sizes       []sizeJSON      `json:"sizes"`
}

type userSeed struct {
	name  string
	email string
	role  string
}

var userSeeds = []userSeed{
	{name: "Admin", email: "admin@example.com", role: "admin"},
	{name: "Demo Customer", email: "customer@example.com", role: "customer"},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		tokenSecret  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&tokenSecret, "token-secret", "", "HMAC secret for bearer tokens (or STOREFRONT_TOKEN_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if tokenSecret == "" {
		tokenSecret = os.Getenv("STOREFRONT_TOKEN_SECRET")
	}
	if tokenSecret == "" {
		slog.Error("token secret is required: set --token-secret or STOREFRONT_TOKEN_SECRET")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, tokenSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, tokenSecret string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedUsers(ctx, pool, []byte(tokenSecret)); err != nil {
		return errors.Wrap(err, "seed users")
	}

	return nil
}

const upsertProductSQL = `INSERT INTO products (id, name, description, price, image, category, stock)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		image = EXCLUDED.image, category = EXCLUDED.category, stock = EXCLUDED.stock`

const upsertSizeSQL = `INSERT INTO product_sizes (product_id, label, stock)
	VALUES ($1, $2, $3)
	ON CONFLICT (product_id, label) DO UPDATE SET stock = EXCLUDED.stock`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, s := range p.Sizes {
			label := product.NormalizeSize(s.Label)
			if _, err := pool.Exec(ctx, upsertSizeSQL, p.ID, label, s.Stock); err != nil {
				return errors.Wrapf(err, "upsert size %s of product %s", label, p.ID)
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertUserSQL = `INSERT INTO users (name, email, role)
	VALUES ($1, $2, $3)
	ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
	RETURNING id`

func seedUsers(ctx context.Context, pool *pgxpool.Pool, secret []byte) error {
	slog.Info("seeding users", slog.Int("count", len(userSeeds)))

	for _, u := range userSeeds {
		var id int64
		if err := pool.QueryRow(ctx, upsertUserSQL, u.name, u.email, u.role).Scan(&id); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.email)
		}

		// The token is printed so local clients can call the API right away.
		slog.Info("upserted user",
			slog.Int64("id", id),
			slog.String("email", u.email),
			slog.String("role", u.role),
			slog.String("bearer_token", auth.SignToken(secret, id)),
		)
	}

	return nil
}
