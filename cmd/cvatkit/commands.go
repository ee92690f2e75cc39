package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cvatkit"
	"github.com/menta2k/cvatkit/internal/config"
	"github.com/menta2k/cvatkit/internal/utils"
	"github.com/menta2k/cvatkit/pkg/client"
	"github.com/menta2k/cvatkit/pkg/llamacpp"
	"github.com/menta2k/cvatkit/pkg/maskio"
	"github.com/menta2k/cvatkit/pkg/ollama"
	"github.com/menta2k/cvatkit/pkg/prelabel"
	"github.com/menta2k/cvatkit/pkg/render"
	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/store"
)

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <image>...",
		Short: "Print the deep link of images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}

			type linkRow struct {
				Image string `json:"image"`
				Link  string `json:"link"`
			}
			rows := make([]linkRow, 0, len(args))
			for _, name := range args {
				link, err := doc.CreateLink(name)
				if err != nil {
					return err
				}
				rows = append(rows, linkRow{Image: name, Link: link})
			}

			if viper.GetBool("json") {
				return printJSON(rows)
			}
			for _, r := range rows {
				fmt.Println(r.Link)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var completed bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the job status side channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			if !doc.HasJobStatus() {
				log.Printf("no job status loaded, use --job-status")
			}

			list := doc.JobStatus
			if completed {
				list = doc.CompletedTasks()
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Task", "Job", "Name", "Stage", "State", "Assignee", "Images"})
			for _, s := range list {
				assignee := ""
				if s.Assignee != nil {
					assignee = *s.Assignee
				}
				tw.AppendRow(table.Row{s.TaskID, s.JobID, s.TaskName, s.Stage, s.State, assignee, len(doc.ImagesInTask(s.TaskID))})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "only completed jobs")
	return cmd
}

func imagesCmd() *cobra.Command {
	var completed, links bool
	var task string
	cmd := &cobra.Command{
		Use:   "images",
		Short: "List annotated images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}

			images := doc.Images
			switch {
			case completed:
				images = doc.ImagesFromCompletedTasks()
			case task != "":
				images = doc.ImagesInTask(task)
			}

			type imageRow struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				TaskID string `json:"task_id,omitempty"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
				Shapes int    `json:"shapes"`
				Link   string `json:"link,omitempty"`
			}
			rows := make([]imageRow, 0, len(images))
			for _, img := range images {
				r := imageRow{ID: img.ID, Name: img.Name, Width: img.Width, Height: img.Height, Shapes: img.Len()}
				if img.TaskID != nil {
					r.TaskID = *img.TaskID
				}
				if links {
					// unlinkable images are listed without a link
					if link, err := doc.CreateLink(img.Name); err == nil {
						r.Link = link
					}
				}
				rows = append(rows, r)
			}

			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			header := table.Row{"ID", "Name", "Task", "Size", "Shapes"}
			if links {
				header = append(header, "Link")
			}
			tw.AppendHeader(header)
			for _, r := range rows {
				row := table.Row{r.ID, r.Name, r.TaskID, fmt.Sprintf("%dx%d", r.Width, r.Height), r.Shapes}
				if links {
					row = append(row, r.Link)
				}
				tw.AppendRow(row)
			}
			tw.AppendFooter(table.Row{"", "", "", "total", len(rows)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "only images of completed tasks")
	cmd.Flags().StringVar(&task, "task", "", "only images of this task")
	cmd.Flags().BoolVar(&links, "links", false, "include deep links")
	return cmd
}

func convertCmd() *cobra.Command {
	var out, to string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Rewrite the export as XML or as a msgpack snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			return saveDocument(doc, out, to)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&to, "to", "", "output format: xml|msgpack (default from extension)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func requestsCmd() *cobra.Command {
	var frame int
	var labelIDs, attributeIDs map[string]int
	cmd := &cobra.Command{
		Use:   "requests <image>",
		Short: "Print the upload bodies for every shape of an image as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			reqs, err := doc.Requests(args[0], frame, labelIDs, attributeIDs)
			if err != nil {
				return err
			}
			return printJSON(reqs)
		},
	}
	cmd.Flags().IntVar(&frame, "frame", -1, "frame number (default: frame index of the image in its task)")
	cmd.Flags().StringToIntVar(&labelIDs, "label-id", nil, "label name to service id, e.g. crack=3")
	cmd.Flags().StringToIntVar(&attributeIDs, "attribute-id", nil, "attribute name to spec id, e.g. confidence=9")
	return cmd
}

func maskCmd() *cobra.Command {
	m := &cobra.Command{Use: "mask", Short: "Convert between mask rasters and RLE"}
	m.AddCommand(maskEncodeCmd())
	m.AddCommand(maskDecodeCmd())
	m.AddCommand(maskExportCmd())
	return m
}

func maskCodec(cfg *config.Config) *maskio.Codec {
	return maskio.NewWithConfig(maskio.Config{
		Quality:   cfg.Mask.Quality,
		Lossless:  cfg.Mask.Lossless,
		Threshold: uint8(cfg.Mask.Threshold),
	})
}

func maskEncodeCmd() *cobra.Command {
	var imageName, out string
	var meta shape.Meta
	cmd := &cobra.Command{
		Use:   "encode <raster>",
		Short: "Encode a mask raster as RLE, optionally attaching it to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			codec := maskCodec(cfg)

			if imageName == "" {
				mask, err := codec.MaskFromFile(meta, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"rle": mask.RLE, "left": mask.Left, "top": mask.Top,
						"width": mask.Width, "height": mask.Height,
					})
				}
				fmt.Printf("rle=%s left=%d top=%d width=%d height=%d\n", mask.RLE, mask.Left, mask.Top, mask.Width, mask.Height)
				return nil
			}

			if meta.Label == "" {
				return fmt.Errorf("--label is required with --image")
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			if _, err := doc.Label(meta.Label); err != nil {
				log.Printf("warning: %v", err)
			}
			ds := &cvatkit.Dataset{Document: doc}
			ds.SetMaskCodec(codec)
			if err := ds.AddMaskFile(imageName, meta, args[0]); err != nil {
				return err
			}
			if out == "" {
				out = viper.GetString("annotations")
			}
			return saveDocument(doc, out, "")
		},
	}
	cmd.Flags().StringVar(&imageName, "image", "", "attach the mask to this image of the export")
	cmd.Flags().StringVar(&meta.Label, "label", "", "mask label")
	cmd.Flags().StringVar(&meta.Source, "source", "file", "mask source")
	cmd.Flags().IntVar(&meta.Occluded, "occluded", 0, "occluded flag")
	cmd.Flags().IntVar(&meta.ZOrder, "z-order", 0, "z order")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output export (default: overwrite --annotations)")
	return cmd
}

func maskDecodeCmd() *cobra.Command {
	var counts, out string
	var mask shape.Mask
	var imageHeight, imageWidth int
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode RLE into a mask raster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mask.RLE = counts

			var b rle.Bitmap
			if imageHeight > 0 && imageWidth > 0 {
				b, err = mask.Segmentation(imageHeight, imageWidth)
			} else {
				b, err = mask.Crop()
			}
			if err != nil {
				return err
			}
			if err := maskCodec(cfg).SaveMask(b, out); err != nil {
				return err
			}
			log.Printf("wrote %s (%d pixels set)", out, b.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&counts, "rle", "", "comma separated run lengths")
	cmd.Flags().IntVar(&mask.Height, "height", 0, "mask height")
	cmd.Flags().IntVar(&mask.Width, "width", 0, "mask width")
	cmd.Flags().IntVar(&mask.Top, "top", 0, "mask top offset in the image")
	cmd.Flags().IntVar(&mask.Left, "left", 0, "mask left offset in the image")
	cmd.Flags().IntVar(&imageHeight, "image-height", 0, "paste into an image of this height")
	cmd.Flags().IntVar(&imageWidth, "image-width", 0, "paste into an image of this width")
	cmd.Flags().StringVarP(&out, "out", "o", "mask.png", "output raster")
	_ = cmd.MarkFlagRequired("rle")
	_ = cmd.MarkFlagRequired("height")
	_ = cmd.MarkFlagRequired("width")
	return cmd
}

func maskExportCmd() *cobra.Command {
	var label, out string
	cmd := &cobra.Command{
		Use:   "export <image>",
		Short: "Write the segmentation of an annotated image as a raster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			img, err := doc.Image(args[0])
			if err != nil {
				return err
			}
			seg, err := img.Segmentation(label)
			if err != nil {
				return err
			}
			if out == "" {
				out = utils.OutputFilename(img.Name, cfg.Output.OutputDir, cfg.Output.Prefix, "_mask", "png")
			}
			if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
				return err
			}
			if err := maskCodec(cfg).SaveMask(seg, out); err != nil {
				return err
			}
			log.Printf("wrote %s (%d pixels set)", out, seg.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "only shapes with this label")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output raster")
	return cmd
}

func renderCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "render <image-file|url>...",
		Short: "Draw the annotations of images for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := loadDocument(cfg)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Output.OutputDir
			}
			if err := utils.EnsureDir(outDir); err != nil {
				return err
			}

			codec := maskCodec(cfg)
			renderer := render.New(render.Options{
				Stroke:      cfg.Render.Stroke,
				FillOpacity: uint8(cfg.Render.FillOpacity),
				Labels:      doc.Project.Labels,
			})
			for _, source := range args {
				name := maskio.SourceName(source)
				ann, err := doc.Image(name)
				if err != nil {
					return err
				}
				img, err := codec.LoadSource(cmd.Context(), source)
				if err != nil {
					return err
				}
				overlay, err := renderer.Overlay(img, ann)
				if err != nil {
					return fmt.Errorf("%s: %w", source, err)
				}
				dst := utils.OutputFilename(name, outDir, cfg.Output.Prefix, cfg.Output.Suffix, cfg.Output.Format)
				if err := codec.SaveImage(overlay, dst); err != nil {
					log.Printf("save %s failed: %v", dst, err)
					continue
				}
				log.Printf("wrote %s (%d shapes)", dst, ann.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	return cmd
}

func visionClient(cfg config.PrelabelConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case "ollama":
		url := cfg.URL
		if url == "" {
			url = "http://localhost:11435/api/chat"
		}
		return ollama.NewClient(url)
	case "llamacpp":
		return llamacpp.NewClient(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Backend)
	}
}

func prelabelCmd() *cobra.Command {
	var out string
	var testVision bool
	cmd := &cobra.Command{
		Use:   "prelabel <image-dir>",
		Short: "Pre-annotate images with a vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Prelabel.Backend, _ = flags.GetString("backend")
			}
			if flags.Changed("url") {
				cfg.Prelabel.URL, _ = flags.GetString("url")
			}
			if flags.Changed("model") {
				cfg.Prelabel.Model, _ = flags.GetString("model")
			}
			if flags.Changed("workers") {
				cfg.Prelabel.Workers, _ = flags.GetInt("workers")
			}
			if flags.Changed("min-confidence") {
				cfg.Prelabel.MinConfidence, _ = flags.GetFloat64("min-confidence")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			vc, err := visionClient(cfg.Prelabel)
			if err != nil {
				return err
			}
			files, err := utils.ListImageFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no images found in %s", args[0])
			}

			doc, err := loadOrCreateDocument(cfg)
			if err != nil {
				return err
			}

			opts := prelabel.Options{
				Model:         cfg.Prelabel.Model,
				Prompt:        cfg.Prelabel.Prompt,
				Workers:       cfg.Prelabel.Workers,
				MaxDim:        cfg.Prelabel.MaxDim,
				Format:        cfg.Prelabel.Format,
				MinConfidence: cfg.Prelabel.MinConfidence,
			}
			if cfg.Prelabel.ProjectLabels {
				for _, l := range doc.Project.Labels {
					opts.Labels = append(opts.Labels, l.Name)
				}
			}
			runner := prelabel.NewRunner(vc, opts)
			runner.SetLogger(log.Default())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if testVision {
				img, err := maskCodec(cfg).LoadImage(files[0])
				if err != nil {
					return err
				}
				answer, err := runner.TestVision(ctx, img)
				if err != nil {
					return err
				}
				fmt.Println(answer)
				return nil
			}

			log.Printf("prelabelling %d images with %s (%s)", len(files), cfg.Prelabel.Model, cfg.Prelabel.Backend)
			results := runner.Run(ctx, files)
			added, err := prelabel.Apply(doc, results)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			log.Printf("added %d shapes, %d of %d images failed", added, failed, len(results))

			if out == "" {
				out = viper.GetString("annotations")
			}
			return saveDocument(doc, out, "")
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output export (default: overwrite --annotations)")
	cmd.Flags().String("backend", "", "backend to use: ollama or llamacpp")
	cmd.Flags().String("url", "", "server URL")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().Int("workers", 0, "concurrent model requests")
	cmd.Flags().Float64("min-confidence", 0, "drop objects below this confidence")
	cmd.Flags().BoolVar(&testVision, "test", false, "only ask the model to describe the first image")
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage the configuration file"}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if utils.FileExists(path) {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Default().SaveToFile(path); err != nil {
				return err
			}
			log.Printf("wrote %s", path)
			return nil
		},
	})
	return c
}

func datasetStore(cfg *config.Config) (store.Store, error) {
	sc := store.Config{
		Backend:   cfg.Store.Backend,
		Root:      cfg.Store.Root,
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Bucket:    cfg.Store.Bucket,
		UseSSL:    cfg.Store.UseSSL,
	}
	if v := viper.GetString("store-access-key"); v != "" {
		sc.AccessKey = v
	}
	if v := viper.GetString("store-secret-key"); v != "" {
		sc.SecretKey = v
	}
	return store.New(sc)
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <dataset-dir> <prefix>",
		Short: "Upload annotations.xml and job_status.json to the dataset store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// refuse to publish an export that does not parse
			if _, err := cvatkit.Open(args[0]); err != nil {
				return err
			}
			s, err := datasetStore(cfg)
			if err != nil {
				return err
			}
			keys, err := store.PushDataset(cmd.Context(), s, args[0], args[1])
			if err != nil {
				return err
			}
			for _, k := range keys {
				log.Printf("uploaded %s", k)
			}
			return nil
		},
	}
}

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <prefix> <dataset-dir>",
		Short: "Download a dataset from the dataset store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := datasetStore(cfg)
			if err != nil {
				return err
			}
			paths, err := store.PullDataset(cmd.Context(), s, args[0], args[1])
			if err != nil {
				return err
			}
			for _, p := range paths {
				log.Printf("downloaded %s", p)
			}
			ds, err := cvatkit.Open(args[1])
			if err != nil {
				return err
			}
			log.Printf("%s: %d images, %d tasks", ds.Document.Project.Name, len(ds.Document.Images), len(ds.Document.Tasks))
			return nil
		},
	}
}
