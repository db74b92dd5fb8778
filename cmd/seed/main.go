// Package main seeds a local development database with demo data by
// exercising the entity coordinator against the configured backends.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/shinyyxxx/Mindsim/internal/blob"
	"github.com/shinyyxxx/Mindsim/internal/core"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

func main() {
	var ownerID int64
	var verbose bool
	flag.Int64Var(&ownerID, "owner", 1, "owner id the demo entities belong to")
	flag.BoolVar(&verbose, "v", false, "verbose output")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, logger, ownerID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, ownerID int64) error {
	graph, spatial, err := core.OpenStores()
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	assets, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	c := core.New(graph, spatial, core.WithLogger(logger), core.WithAssetStore(assets))
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("close stores")
		}
	}()

	modelID, err := c.CreateModelAsset(ctx, core.ModelAssetInput{
		Filename:    "starter_home.glb",
		ContentType: "model/gltf-binary",
		Content:     strings.NewReader(demoGLB),
		Textures: []core.TextureInput{
			{Filename: "plaster.png", ContentType: "image/png", Content: strings.NewReader(demoTexture)},
		},
	})
	if err != nil {
		return fmt.Errorf("seed model asset: %w", err)
	}
	logger.Info().Int("model_id", modelID).Msg("seeded model asset")

	homeID, err := c.CreateHome(ctx, core.HomeInput{
		Name:    "starter home",
		Detail:  "default scene for new users",
		OwnerID: ownerID,
		ModelID: &modelID,
	})
	if err != nil {
		return fmt.Errorf("seed home: %w", err)
	}
	logger.Info().Int("home_id", homeID).Msg("seeded home")

	for _, item := range []core.DeployedItemInput{
		{Name: "desk", Category: "furniture", OwnerID: ownerID, HomeID: homeID,
			Position: &domain.Vec3{X: 2, Z: 1}},
		{Name: "bookshelf", Category: "furniture", OwnerID: ownerID, HomeID: homeID, IsContainer: true,
			Position: &domain.Vec3{X: -1, Z: 3}, Rotation: &domain.Vec3{Y: 90}},
	} {
		id, err := c.CreateDeployedItem(ctx, item)
		if err != nil {
			return fmt.Errorf("seed item %s: %w", item.Name, err)
		}
		logger.Info().Int("item_id", id).Str("name", item.Name).Msg("seeded deployed item")
	}

	var sphereIDs []int
	for i, in := range []core.MentalSphereInput{
		{Name: "first memory", Detail: "a walk in the rain", Color: "#3366FF"},
		{Name: "ambition", Detail: "learning to sail", Color: "#FF9900"},
		{Name: "quiet", Detail: "", Color: ""},
	} {
		in.OwnerID = ownerID
		scale := domain.UniformScale(1 + float64(i)*0.5)
		in.Scale = &scale
		in.Position = &domain.Vec3{X: float64(i) * 2, Y: 1.5, Z: 0}
		id, err := c.CreateMentalSphere(ctx, in)
		if err != nil {
			return fmt.Errorf("seed sphere %s: %w", in.Name, err)
		}
		sphereIDs = append(sphereIDs, id)
		logger.Info().Int("sphere_id", id).Str("name", in.Name).Msg("seeded mental sphere")
	}

	mindID, err := c.CreateMind(ctx, core.MindInput{
		Name:            "waking mind",
		OwnerID:         ownerID,
		MentalSphereIDs: sphereIDs[:2],
	})
	if err != nil {
		return fmt.Errorf("seed mind: %w", err)
	}
	if err := c.AddMindSpheres(ctx, mindID, sphereIDs[2:]); err != nil {
		return fmt.Errorf("attach spheres: %w", err)
	}
	logger.Info().Int("mind_id", mindID).Ints("sphere_ids", sphereIDs).Msg("seeded mind")

	count := 0
	for view, err := range c.ListMentalSpheresByOwner(ctx, ownerID) {
		if err != nil {
			return fmt.Errorf("verify spheres: %w", err)
		}
		logger.Debug().Int("id", view.ID).Str("name", view.Name).
			Float64("x", view.Position.X).Float64("y", view.Position.Y).Float64("z", view.Position.Z).
			Msg("sphere")
		count++
	}
	logger.Info().Int("spheres", count).Int64("owner", ownerID).Msg("seed complete")
	return nil
}

// Placeholder binary payloads; real deployments upload user GLB content.
const (
	demoGLB     = "glTF\x02\x00\x00\x00demo"
	demoTexture = "\x89PNG demo"
)
