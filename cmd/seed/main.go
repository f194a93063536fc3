// Command seed creates the campus-canteen schema and fills it with a
// demo dataset: two vendors with counters, menus and variations, a
// shelf of ready-to-eat units, and demo accounts.  It prints access
// tokens for the demo accounts so the API can be exercised immediately.
// Running it against an already seeded database only re-applies the
// schema and leaves the data alone.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/adityarao/campus-canteen/internal/config"
	"github.com/adityarao/campus-canteen/internal/database"
	"github.com/adityarao/campus-canteen/internal/model"
	"github.com/adityarao/campus-canteen/internal/utils"
)

// Table creation order respects foreign keys: vendors before users and
// counters, rte_items before the claim columns that reference them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vendors (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        name VARCHAR(100) NOT NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_vendors_name (name)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        username VARCHAR(64) NOT NULL,
        password_hash VARCHAR(100) NOT NULL,
        role VARCHAR(16) NOT NULL,
        vendor_id BIGINT UNSIGNED NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_users_username (username),
        CONSTRAINT fk_users_vendor FOREIGN KEY (vendor_id) REFERENCES vendors (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS counters (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        vendor_id BIGINT UNSIGNED NOT NULL,
        name VARCHAR(100) NOT NULL,
        description TEXT NOT NULL,
        image_url VARCHAR(255) NULL,
        PRIMARY KEY (id),
        KEY idx_counters_vendor (vendor_id),
        CONSTRAINT fk_counters_vendor FOREIGN KEY (vendor_id) REFERENCES vendors (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS menu_items (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        counter_id BIGINT UNSIGNED NOT NULL,
        name VARCHAR(100) NOT NULL,
        description TEXT NOT NULL,
        price DECIMAL(10,2) NOT NULL DEFAULT 0,
        PRIMARY KEY (id),
        KEY idx_menu_items_counter (counter_id),
        CONSTRAINT fk_menu_items_counter FOREIGN KEY (counter_id) REFERENCES counters (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS item_variations (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        menu_item_id BIGINT UNSIGNED NOT NULL,
        name VARCHAR(100) NOT NULL,
        price DECIMAL(10,2) NOT NULL,
        PRIMARY KEY (id),
        KEY idx_item_variations_menu_item (menu_item_id),
        CONSTRAINT fk_item_variations_menu_item FOREIGN KEY (menu_item_id) REFERENCES menu_items (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rte_items (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        item_variation_id BIGINT UNSIGNED NOT NULL,
        counter_id BIGINT UNSIGNED NOT NULL,
        quantity INT UNSIGNED NOT NULL DEFAULT 1,
        added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        KEY idx_rte_items_variation (item_variation_id),
        KEY idx_rte_items_counter (counter_id),
        CONSTRAINT fk_rte_items_variation FOREIGN KEY (item_variation_id) REFERENCES item_variations (id),
        CONSTRAINT fk_rte_items_counter FOREIGN KEY (counter_id) REFERENCES counters (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS carts (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        user_id BIGINT UNSIGNED NOT NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_carts_user (user_id),
        CONSTRAINT fk_carts_user FOREIGN KEY (user_id) REFERENCES users (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// The UNIQUE claim column is the hard guarantee behind "one claimant
	// per unit"; the row lock taken during claiming only orders the race.
	// ON DELETE CASCADE from rte_items empties claiming cart lines when
	// a unit is removed from the shelf.
	`CREATE TABLE IF NOT EXISTS cart_items (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        cart_id BIGINT UNSIGNED NOT NULL,
        item_variation_id BIGINT UNSIGNED NOT NULL,
        quantity INT UNSIGNED NOT NULL DEFAULT 1,
        claimed_rte_item_id BIGINT UNSIGNED NULL,
        PRIMARY KEY (id),
        KEY idx_cart_items_cart (cart_id),
        UNIQUE KEY uq_cart_items_claim (claimed_rte_item_id),
        CONSTRAINT fk_cart_items_cart FOREIGN KEY (cart_id) REFERENCES carts (id) ON DELETE CASCADE,
        CONSTRAINT fk_cart_items_variation FOREIGN KEY (item_variation_id) REFERENCES item_variations (id),
        CONSTRAINT fk_cart_items_claim FOREIGN KEY (claimed_rte_item_id) REFERENCES rte_items (id) ON DELETE CASCADE
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS orders (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        user_id BIGINT UNSIGNED NOT NULL,
        total_price DECIMAL(10,2) NOT NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'Pending',
        external_id CHAR(36) NOT NULL,
        pickup_code CHAR(5) NOT NULL,
        is_ready_to_eat_purchase TINYINT(1) NOT NULL DEFAULT 0,
        cancellation_reason VARCHAR(255) NULL,
        cancelled_by VARCHAR(10) NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        preparing_at DATETIME NULL,
        ready_at DATETIME NULL,
        completed_at DATETIME NULL,
        cancelled_at DATETIME NULL,
        PRIMARY KEY (id),
        UNIQUE KEY uq_orders_external (external_id),
        UNIQUE KEY uq_orders_pickup_code (pickup_code),
        KEY idx_orders_user (user_id),
        KEY idx_orders_status (status),
        CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES users (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// ON DELETE SET NULL: completing an order deletes the claimed units,
	// which detaches the claim while the order line itself survives.
	`CREATE TABLE IF NOT EXISTS order_items (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        order_id BIGINT UNSIGNED NOT NULL,
        item_variation_id BIGINT UNSIGNED NOT NULL,
        quantity INT UNSIGNED NOT NULL,
        price_at_order DECIMAL(10,2) NOT NULL,
        claimed_rte_item_id BIGINT UNSIGNED NULL,
        PRIMARY KEY (id),
        KEY idx_order_items_order (order_id),
        UNIQUE KEY uq_order_items_claim (claimed_rte_item_id),
        CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE,
        CONSTRAINT fk_order_items_variation FOREIGN KEY (item_variation_id) REFERENCES item_variations (id),
        CONSTRAINT fk_order_items_claim FOREIGN KEY (claimed_rte_item_id) REFERENCES rte_items (id) ON DELETE SET NULL
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}
	log.Println("schema applied")

	var vendorCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vendors`).Scan(&vendorCount); err != nil {
		log.Fatalf("seed: %v", err)
	}
	if vendorCount > 0 {
		log.Println("demo data already present, skipping")
		printTokens(ctx, db, cfg)
		return
	}

	if err := seedDemoData(ctx, db, cfg); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("demo data inserted")
	printTokens(ctx, db, cfg)
}

func seedDemoData(ctx context.Context, db *sql.DB, cfg config.Config) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	insert := func(query string, args ...interface{}) (uint64, error) {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		return uint64(id), err
	}

	annapurna, err := insert(`INSERT INTO vendors (name) VALUES (?)`, "Annapurna Foods")
	if err != nil {
		return err
	}
	snackCo, err := insert(`INSERT INTO vendors (name) VALUES (?)`, "Campus Snack Co")
	if err != nil {
		return err
	}

	mainCourse, err := insert(
		`INSERT INTO counters (vendor_id, name, description) VALUES (?, ?, ?)`,
		annapurna, "Main Course Counter", "Thalis and curries, cooked fresh through lunch")
	if err != nil {
		return err
	}
	snacks, err := insert(
		`INSERT INTO counters (vendor_id, name, description) VALUES (?, ?, ?)`,
		snackCo, "Snacks Corner", "Quick bites and beverages between classes")
	if err != nil {
		return err
	}

	type variation struct {
		name  string
		price string
	}
	type dish struct {
		counter    uint64
		name, desc string
		variations []variation
	}
	dishes := []dish{
		{mainCourse, "Veg Thali", "Dal, sabzi, rice, rotis and salad", []variation{{"Regular", "80.00"}, {"Deluxe", "120.00"}}},
		{mainCourse, "Paneer Butter Masala", "With two butter rotis", []variation{{"Half", "90.00"}, {"Full", "160.00"}}},
		{snacks, "Samosa", "Served with mint and tamarind chutney", []variation{{"Single", "15.00"}, {"Plate of 2", "25.00"}}},
		{snacks, "Cold Coffee", "Blended with ice cream", []variation{{"Regular", "40.00"}, {"Large", "60.00"}}},
	}
	// A few units go straight onto the ready-to-eat shelf so the
	// /v1/ready-to-eat listing is non-empty out of the box.
	shelf := map[string]int{"Veg Thali/Regular": 2, "Samosa/Single": 3}
	for _, d := range dishes {
		itemID, err := insert(
			`INSERT INTO menu_items (counter_id, name, description, price) VALUES (?, ?, ?, ?)`,
			d.counter, d.name, d.desc, d.variations[0].price)
		if err != nil {
			return err
		}
		for _, v := range d.variations {
			varID, err := insert(
				`INSERT INTO item_variations (menu_item_id, name, price) VALUES (?, ?, ?)`,
				itemID, v.name, v.price)
			if err != nil {
				return err
			}
			for i := 0; i < shelf[d.name+"/"+v.name]; i++ {
				if _, err := insert(
					`INSERT INTO rte_items (item_variation_id, counter_id, quantity) VALUES (?, ?, 1)`,
					varID, d.counter); err != nil {
					return err
				}
			}
		}
	}

	type account struct {
		username string
		role     string
		vendorID *uint64
	}
	accounts := []account{
		{"asha", model.RoleCustomer, nil},
		{"annapurna.staff", model.RoleVendor, &annapurna},
		{"snackco.staff", model.RoleVendor, &snackCo},
	}
	for _, a := range accounts {
		hash, err := utils.HashPassword("password123", cfg.BcryptCost)
		if err != nil {
			return err
		}
		if _, err := insert(
			`INSERT INTO users (username, password_hash, role, vendor_id) VALUES (?, ?, ?, ?)`,
			a.username, hash, a.role, a.vendorID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// printTokens mints an access token per demo account so the API can be
// called without an identity provider in the loop.
func printTokens(ctx context.Context, db *sql.DB, cfg config.Config) {
	rows, err := db.QueryContext(ctx, `SELECT id, username, role FROM users ORDER BY id`)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	defer rows.Close()
	fmt.Println("\ndemo access tokens:")
	for rows.Next() {
		var (
			id       uint64
			username string
			role     string
		)
		if err := rows.Scan(&id, &username, &role); err != nil {
			log.Fatalf("tokens: %v", err)
		}
		tok, err := utils.NewAccessToken(cfg.JWTSecret, id, role, cfg.AccessTTLMin)
		if err != nil {
			log.Fatalf("tokens: %v", err)
		}
		fmt.Printf("  %-16s (%s)\n    %s\n", username, role, tok.Token)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("tokens: %v", err)
	}
}
