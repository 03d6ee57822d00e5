package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/binzume/splatrig/converter"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/logger"
	"github.com/binzume/splatrig/rig"
	"github.com/binzume/splatrig/sga"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "splatrig",
		Short: "Bind gaussian splat point clouds to humanoid avatars",
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also log to a rotating file")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(bindCommand(), infoCommand())
	return rootCmd
}

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".sga"
}

func bindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bind <model.vrm> <splats.ply>",
		Short: "Build a splat-avatar archive from a VRM model and a splat cloud",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(viper.GetString("log-level"), viper.GetString("log-file"))
			defer log.Sync()

			options := &converter.SGAOptions{
				Logger:           log,
				Fast:             viper.GetBool("fast"),
				SkipValidation:   viper.GetBool("nocheck"),
				RemoveBackground: viper.GetBool("nobg"),
				DebugDir:         viper.GetString("debug-dir"),
				WriteSplitClouds: viper.GetBool("split"),
			}
			if path := viper.GetString("config"); path != "" {
				conf, err := rig.LoadConfig(path)
				if err != nil {
					return err
				}
				options.Config = conf
			}

			output := viper.GetString("output")
			if output == "" {
				output = defaultOutputFile(args[1])
			}
			return converter.NewSGAConverter(options).Convert(cmd.Context(), args[0], args[1], output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output archive path (default: next to the cloud)")
	cmd.Flags().Bool("nocheck", false, "skip keypoint pose validation")
	cmd.Flags().Bool("nobg", false, "drop the background cloud instead of keeping it")
	cmd.Flags().Bool("fast", false, "preview-quality sampled classification")
	cmd.Flags().Bool("split", false, "also write foreground/background PLY files")
	cmd.Flags().String("config", "", "capsule segment/culling table (YAML)")
	cmd.Flags().String("debug-dir", "", "write debug heatmap images here")
	_ = viper.BindPFlags(cmd.Flags())
	return cmd
}

// eulerDegrees renders a stored quaternion as YXZ euler angles in degrees.
func eulerDegrees(q [4]float32) [3]float32 {
	e := geom.NewEulerFromQuaternion(geom.NewQuaternion(q[0], q[1], q[2], q[3]), geom.RotationOrderYXZ)
	const toDeg = 180 / math.Pi
	return [3]float32{e.X * toDeg, e.Y * toDeg, e.Z * toDeg}
}

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive.sga>",
		Short: "Print a summary of a splat-avatar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sga.LoadFile(args[0])
			if err != nil {
				return err
			}
			_, groups := a.Binding.BoneGroups()
			fmt.Printf("model: %d bytes\n", len(a.ModelGLB))
			fmt.Printf("splats: %d\n", a.Splats.Count())
			fmt.Printf("bone groups: %d\n", groups)
			fmt.Printf("modelScale: %v\n", a.Binding.ModelScale)
			fmt.Printf("gsPosition: %v\n", a.Binding.GsPosition)
			fmt.Printf("gsRotation: %v deg\n", eulerDegrees(a.Binding.GsQuaternion))
			for _, op := range a.Binding.BoneOperations {
				fmt.Printf("boneOperation: %s %v deg\n", op.Bone, eulerDegrees(op.Rotation))
			}
			return nil
		},
	}
}
