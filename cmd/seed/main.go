package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/database"
	"github.com/stemsi/exstem-admin/internal/logger"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
}

func main() {
	count := flag.Int("students", 30, "Number of students to create")
	password := flag.String("password", "student123", "Password for every seeded student")
	schoolCode := flag.String("school", "DEMO", "Code of the school to seed into")
	level := flag.String("level", "Grade 12", "Class level name")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	gdb, err := database.NewGorm(pool, cfg.SlowQuery, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open GORM session")
	}

	schoolRepo := repository.NewSchoolRepository(gdb)
	levelRepo := repository.NewClassLevelRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)
	roleRepo := repository.NewRoleRepository(pool)
	authService := service.NewAuthService(cfg, nil, userRepo, roleRepo, log)
	userService := service.NewUserService(userRepo, roleRepo, schoolRepo, levelRepo, authService, log)

	fmt.Printf("=== Seeding %d Students ===\n", *count)

	school := model.School{Code: *schoolCode}
	if err := gdb.WithContext(ctx).
		Where(model.School{Code: *schoolCode}).
		Attrs(model.School{Name: "Demo School " + *schoolCode, IsActive: true}).
		FirstOrCreate(&school).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to find or create school")
	}
	fmt.Printf("Using school %q with ID: %d\n", school.Name, school.ID)

	classLevel := model.ClassLevel{Name: *level}
	if err := gdb.WithContext(ctx).
		Where(model.ClassLevel{Name: *level}).
		Attrs(model.ClassLevel{IsActive: true}).
		FirstOrCreate(&classLevel).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to find or create class level")
	}
	fmt.Printf("Using class level %q with ID: %d\n", classLevel.Name, classLevel.ID)

	created, skipped := 0, 0
	for i := 0; i < *count; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}
		_, err := userService.Create(ctx, model.CreateUserRequest{
			Email:    fmt.Sprintf("student%03d@%s.test", i+1, *schoolCode),
			Password: *password,
			Kind:     model.UserStudent,
			Profile: model.ProfileRequest{
				FullName:     name,
				SchoolID:     &school.ID,
				ClassLevelID: &classLevel.ID,
				RollNumber:   fmt.Sprintf("%05d", i+1),
			},
		})
		switch {
		case errors.Is(err, service.ErrDuplicate):
			skipped++
		case err != nil:
			fmt.Printf("Error creating student %s: %v\n", name, err)
		default:
			created++
			if created%10 == 0 {
				fmt.Printf("Created %d students...\n", created)
			}
		}
	}

	fmt.Printf("\nSeed completed! Added %d students, %d already existed.\n", created, skipped)
}
