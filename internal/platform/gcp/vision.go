package gcp

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/mediavault/mediavault-backend/internal/platform/envutil"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

// ImageFeatures is the analysis stamped into an asset's context bag during
// the analyze stage: labels plus a dominant-color palette.
type ImageFeatures struct {
	Labels []string `json:"labels,omitempty"`
	Colors []string `json:"colors,omitempty"`
}

// Vision extracts features from an image reachable by URL.
type Vision interface {
	Features(ctx context.Context, imageURL string) (*ImageFeatures, error)
	Close() error
}

type visionService struct {
	log       *logger.Logger
	client    *vision.ImageAnnotatorClient
	maxLabels int
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Vision")

	var opts []option.ClientOption
	if creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := vision.NewImageAnnotatorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionService{
		log:       slog,
		client:    client,
		maxLabels: envutil.Int("VISION_MAX_LABELS", 10),
	}, nil
}

func (s *visionService) Close() error {
	return s.client.Close()
}

func (s *visionService) Features(ctx context.Context, imageURL string) (*ImageFeatures, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	batch, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{
				Source: &visionpb.ImageSource{ImageUri: imageURL},
			},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: int32(s.maxLabels)},
				{Type: visionpb.Feature_IMAGE_PROPERTIES},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision AnnotateImage: %w", err)
	}
	resp := batch.Responses[0]
	if resp.Error != nil {
		return nil, fmt.Errorf("vision annotation error: %s", resp.Error.Message)
	}

	features := &ImageFeatures{}
	for _, label := range resp.LabelAnnotations {
		if label != nil && label.Description != "" {
			features.Labels = append(features.Labels, label.Description)
		}
	}
	if props := resp.ImagePropertiesAnnotation; props != nil && props.DominantColors != nil {
		for _, c := range props.DominantColors.Colors {
			if c == nil || c.Color == nil {
				continue
			}
			features.Colors = append(features.Colors, fmt.Sprintf("#%02x%02x%02x",
				int(c.Color.Red), int(c.Color.Green), int(c.Color.Blue)))
			if len(features.Colors) >= 5 {
				break
			}
		}
	}
	return features, nil
}
