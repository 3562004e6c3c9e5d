package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/auth"
	"hojaruta-backend/internal/backup"
	"hojaruta-backend/internal/envios"
	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/hojas"
	"hojaruta-backend/internal/ledger"
	"hojaruta-backend/internal/locaciones"
	"hojaruta-backend/internal/notificaciones"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/queue"
	"hojaruta-backend/internal/services/health"
	sharedauth "hojaruta-backend/internal/shared/auth"
	"hojaruta-backend/internal/shared/config"
	"hojaruta-backend/internal/shared/server"
	"hojaruta-backend/internal/shared/storage/db"
	"hojaruta-backend/internal/shared/storage/object"
	localstore "hojaruta-backend/internal/shared/storage/object/local"
	s3store "hojaruta-backend/internal/shared/storage/object/s3"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/unidades"
	"hojaruta-backend/internal/usuarios"
	"hojaruta-backend/internal/workerproc"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	Tx     db.TxRunner
	Clock  ledger.Clock
	Tokens *sharedauth.Issuer

	HojasRepo hojas.Repo

	AuthService           *auth.Service
	HojasService          *hojas.Service
	EnviosService         *envios.Service
	ProgresoService       *progreso.Service
	NotificacionesService *notificaciones.Service
	UsuariosService       *usuarios.Service
	UnidadesService       *unidades.Service
	LocacionesService     *locaciones.Service
	HistorialService      *historial.Service
	BackupService         *backup.Service
	Processor             *workerproc.Processor
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := sharedauth.NewIssuer(sharedauth.IssuerConfig{
		Secret:        cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.TokenExpiry,
		RefreshTTL:    cfg.RefreshTokenExpiry,
		Production:    cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Clock:  ledger.NewClock(cfg.Location()),
		Tokens: tokens,
	}
	if sqlDB != nil {
		app.Tx = db.NewTxManager(sqlDB)
	} else {
		app.Tx = &db.MemoryTx{}
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		Tokens:         tokens,
		Health:         health.NewHandler(health.NewService(pinger(sqlDB), cfg.Env)),
		Auth:           auth.NewHandler(app.AuthService),
		Hojas:          hojas.NewHandler(app.HojasService),
		Envios:         envios.NewHandler(app.EnviosService),
		Progreso:       progreso.NewHandler(app.ProgresoService),
		Notificaciones: notificaciones.NewHandler(app.NotificacionesService),
		Usuarios:       usuarios.NewHandler(app.UsuariosService),
		Unidades:       unidades.NewHandler(app.UnidadesService),
		Locaciones:     locaciones.NewHandler(app.LocacionesService),
		Historial:      historial.NewHandler(app.HistorialService),
		Backup:         backup.NewHandler(app.BackupService),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.AllowMemory {
			telemetry.Warn("bootstrap.memory_mode", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		opts.TimeZone = cfg.Timezone
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		opts.TimeZone = cfg.Timezone
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.AllowMemory && !cfg.IsProduction() {
			telemetry.Warn("bootstrap.memory_mode", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.BackupStoreType {
	case "s3":
		if strings.TrimSpace(cfg.BackupS3Bucket) == "" {
			return nil, errors.New("BACKUP_STORE=s3 requires BACKUP_S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.BackupS3Bucket, cfg.BackupS3Prefix, cfg.BackupSSEKMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("init backup store: %w", err)
		}
		return store, nil
	default:
		return localstore.New(cfg.BackupLocalDir), nil
	}
}

func buildServices(ctx context.Context, app *App) error {
	var (
		hojaRepo    hojas.Repo
		envioRepo   envios.Repo
		progresoRep progreso.Repo
		notesRepo   notificaciones.Repo
		userRepo    usuarios.Repo
		unitRepo    unidades.Repo
		placeRepo   locaciones.Repo
		logRepo     historial.Repo
		source      backup.Source
	)
	if app.DB != nil {
		hojaRepo = &hojas.PGRepo{DB: app.DB}
		envioRepo = &envios.PGRepo{DB: app.DB}
		progresoRep = &progreso.PGRepo{DB: app.DB}
		notesRepo = &notificaciones.PGRepo{DB: app.DB}
		userRepo = &usuarios.PGRepo{DB: app.DB}
		unitRepo = &unidades.PGRepo{DB: app.DB}
		placeRepo = &locaciones.PGRepo{DB: app.DB}
		logRepo = &historial.PGRepo{DB: app.DB}
		source = &backup.PGSource{DB: app.DB}
	} else {
		memUnits := unidades.NewMemoryRepo()
		unitRepo = memUnits
		userRepo = usuarios.NewMemoryRepo(unitNamer(memUnits))
		hojaRepo = hojas.NewMemoryRepo()
		envioRepo = envios.NewMemoryRepo()
		progresoRep = progreso.NewMemoryRepo()
		notesRepo = notificaciones.NewMemoryRepo()
		placeRepo = locaciones.NewMemoryRepo()
		logRepo = historial.NewMemoryRepo()
	}

	units := unidades.NewService(unitRepo)
	users := usuarios.NewService(userRepo)
	progress := progreso.NewService(progresoRep, hojaRepo, app.Tx)
	notes := notificaciones.NewService(notesRepo, nil, unitMembers{users: users})
	activity := historial.NewService(logRepo, app.Clock)
	hojasSvc := hojas.NewService(hojaRepo, progress, notes, app.Tx, app.Clock, app.Config.SectionCapacity)
	hojasSvc.Inbox = notes
	hojasSvc.Activity = activity
	notes.Due = hojasSvc

	processor := workerproc.NewProcessor(notes, hojaRepo)
	queueClient, err := buildQueue(ctx, app.Config, processor)
	if err != nil {
		return err
	}

	app.HojasRepo = hojaRepo
	app.Queue = queueClient
	app.Processor = processor
	app.UnidadesService = units
	app.LocacionesService = locaciones.NewService(placeRepo)
	app.HistorialService = activity
	app.UsuariosService = users
	app.ProgresoService = progress
	app.NotificacionesService = notes
	app.HojasService = hojasSvc
	app.EnviosService = envios.NewService(envios.Deps{
		Repo:     envioRepo,
		Hojas:    hojaRepo,
		Units:    units,
		Users:    users,
		Progress: progress,
		Queue:    queueClient,
		Activity: activity,
		Tx:       app.Tx,
		Clock:    app.Clock,
		Capacity: app.Config.SectionCapacity,
	})
	app.AuthService = auth.NewService(userRepo, app.Tokens)
	app.BackupService = backup.NewService(source, app.Store, app.Clock)

	if app.DB == nil {
		if err := seedMemoryAdmin(ctx, users); err != nil {
			return err
		}
	}
	return nil
}

// buildQueue publishes to SQS when a queue URL is configured and otherwise
// handles events in process.
func buildQueue(ctx context.Context, cfg config.Config, p *workerproc.Processor) (queue.Client, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return queue.NewInlineClient(p.Handle), nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.NotifyQueueURL, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init notify queue: %w", err)
	}
	return client, nil
}

// seedMemoryAdmin creates a developer account so an in-memory process can be
// signed into. It is skipped when DEV_ADMIN_PASSWORD is unset.
func seedMemoryAdmin(ctx context.Context, users *usuarios.Service) error {
	password := os.Getenv("DEV_ADMIN_PASSWORD")
	if password == "" {
		return nil
	}
	username := strings.TrimSpace(os.Getenv("DEV_ADMIN_USERNAME"))
	if username == "" {
		username = "admin"
	}
	_, err := users.Create(ctx, usuarios.CreateInput{
		Username:       username,
		Password:       password,
		NombreCompleto: "Administrador de desarrollo",
		Rol:            "desarrollador",
	})
	if err != nil && !errors.Is(err, usuarios.ErrDuplicate) {
		return fmt.Errorf("seed admin: %w", err)
	}
	telemetry.Info("bootstrap.admin_seeded", map[string]any{"username": username})
	return nil
}

// unitMembers resolves unit members for notification fan-out.
type unitMembers struct {
	users *usuarios.Service
}

func (u unitMembers) ActiveUserIDs(ctx context.Context, unidadID int64) ([]int64, error) {
	list, err := u.users.ActiveInUnit(ctx, unidadID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, usr := range list {
		ids = append(ids, usr.ID)
	}
	return ids, nil
}

func unitNamer(repo unidades.Repo) usuarios.UnitNamer {
	return func(ctx context.Context, id int64) (string, bool) {
		u, err := repo.Get(ctx, id)
		if err != nil {
			return "", false
		}
		return u.Nombre, true
	}
}

func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}
