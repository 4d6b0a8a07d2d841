// Command main runs the database seeder for SnapShare.
package main

import (
	"context"
	"flag"
	"log"

	"snapshare/internal/config"
	"snapshare/internal/database"
	"snapshare/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of generated users on top of the fixture")
	numPosts := flag.Int("posts", 200, "Number of generated posts")
	shouldClean := flag.Bool("clean", false, "Delete all rows before seeding")
	fixture := flag.String("fixture", "", "YAML fixture of demo accounts (default: built-in)")
	randSeed := flag.Int64("seed", 0, "Random seed for repeatable data (0 = time based)")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.NewSeeder(db).Run(context.Background(), seed.Options{
		FixturePath: *fixture,
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		RandSeed:    *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d posts, %d likes, %d comments, %d follows, %d bookmarks",
		res.Users, res.Posts, res.Likes, res.Comments, res.Follows, res.Bookmarks)

	f, err := seed.LoadFixture(*fixture)
	if err == nil {
		log.Printf("Fixture accounts use the password: %s", f.Password)
	}
}
